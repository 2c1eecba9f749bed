package timesheethandler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"timesheets/internal/domain/audit"
	"timesheets/internal/domain/auth"
	"timesheets/internal/domain/timesheet"
	"timesheets/internal/platform/metrics"
	"timesheets/internal/transport/http/api"
	"timesheets/internal/transport/http/middleware"
	"timesheets/internal/transport/http/shared"
)

// AuditLog is the read side of the audit trail used for per-entry history.
type AuditLog interface {
	ListForEntity(ctx context.Context, entityType, entityID string) ([]audit.Event, error)
}

type Limits struct {
	BulkMaxItems      int
	BulkRatePerMinute int
}

type Handler struct {
	Service     *timesheet.Service
	Perms       middleware.PermissionStore
	Audit       AuditLog
	Idempotency *middleware.IdempotencyStore
	Metrics     *metrics.Collector
	Limits      Limits
}

func NewHandler(service *timesheet.Service, perms middleware.PermissionStore, auditLog AuditLog, idem *middleware.IdempotencyStore, collector *metrics.Collector, limits Limits) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditLog, Idempotency: idem, Metrics: collector, Limits: limits}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/timesheets", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermTimesheetWrite, h.Perms)).Put("/", h.handleSave)
		r.With(middleware.RequirePermission(auth.PermTimesheetWrite, h.Perms)).Post("/validate", h.handleValidate)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/weeks", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/weeks/{weekStart}", h.handleWeek)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/weeks/{weekStart}/statement.pdf", h.handleStatement)
		r.With(middleware.RequirePermission(auth.PermTimesheetApprove, h.Perms)).Get("/approval/pending", h.handleApprovalQueue)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/stats/summary", h.handleSummary)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/{id}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermTimesheetRead, h.Perms)).Get("/{id}/audit", h.handleEntryAudit)
		r.With(middleware.RequirePermission(auth.PermTimesheetWrite, h.Perms)).Post("/{id}/submit", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermTimesheetWrite, h.Perms)).Post("/{id}/resubmit", h.handleResubmit)
		r.With(middleware.RequirePermission(auth.PermTimesheetApprove, h.Perms)).Post("/{id}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermTimesheetApprove, h.Perms)).Post("/{id}/reject", h.handleReject)

		r.Group(func(r chi.Router) {
			if h.Limits.BulkRatePerMinute > 0 {
				r.Use(middleware.RateLimit(h.Limits.BulkRatePerMinute, time.Minute, middleware.WithScope("bulk")))
			}
			r.With(middleware.RequirePermission(auth.PermTimesheetWrite, h.Perms)).Post("/bulk-save", h.handleBulkSave)
			r.With(middleware.RequirePermission(auth.PermTimesheetWrite, h.Perms)).Post("/bulk-submit", h.handleBulkSubmit)
			r.With(middleware.RequirePermission(auth.PermTimesheetApprove, h.Perms)).Post("/bulk-approve", h.handleBulkApprove)
			r.With(middleware.RequirePermission(auth.PermTimesheetApprove, h.Perms)).Post("/bulk-reject", h.handleBulkReject)
		})
	})
}

// actor resolves the authenticated caller. On failure the 401 response is
// already written.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (timesheet.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return timesheet.Actor{}, false
	}
	actor, err := h.Service.ResolveActor(r.Context(), user.UserID, user.RoleName, user.EmployeeID)
	if err != nil {
		slog.Warn("resolve actor employee failed", "userId", user.UserID, "err", err)
	}
	return actor, true
}

type saveResponse struct {
	Entry    timesheet.Entry     `json:"entry"`
	Warnings []timesheet.Warning `json:"warnings"`
}

type validatePayload struct {
	Entries []timesheet.Draft `json:"entries" validate:"required,min=1"`
}

type reviewPayload struct {
	Comments string `json:"comments" validate:"max=2000"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []timesheet.Entry{}
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	groups, err := h.Service.History(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []timesheet.WeekGroup{}
	}
	api.Success(w, groups, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleWeek(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	weekStart, ok := parseWeekParam(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Week(r.Context(), actor, r.URL.Query().Get("employeeId"), weekStart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	weekStart, ok := parseWeekParam(w, r)
	if !ok {
		return
	}
	view, err := h.Service.Week(r.Context(), actor, r.URL.Query().Get("employeeId"), weekStart)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := timesheet.WriteStatement(&buf, view.Week); err != nil {
		slog.Error("render timesheet statement failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "statement_failed", "failed to render timesheet statement", middleware.GetRequestID(r.Context()))
		return
	}
	filename := fmt.Sprintf("timesheet-%s-%s.pdf", view.Week.EmployeeID, timesheet.WeekKey(weekStart))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("write timesheet statement failed", "err", err)
	}
}

func (h *Handler) handleApprovalQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	queue, err := h.Service.ApprovalQueue(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, queue, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	totals, err := h.Service.StatusSummary(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, totals, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	entry, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEntryAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Service.Get(r.Context(), actor, id); err != nil {
		writeError(w, r, err)
		return
	}
	events := []audit.Event{}
	if h.Audit != nil {
		list, err := h.Audit.ListForEntity(r.Context(), timesheet.EntityType, id)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
			return
		}
		if list != nil {
			events = list
		}
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var draft timesheet.Draft
	if !shared.DecodeJSON(w, r, &draft, middleware.GetRequestID(r.Context())) {
		return
	}
	// Provenance is assigned by the server, never by the client.
	draft.Source = timesheet.SourceUser

	entry, warnings, err := h.Service.Save(r.Context(), actor, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, saveResponse{Entry: entry, Warnings: warnings}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload validatePayload
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	if !h.withinBatch(w, r, len(payload.Entries)) {
		return
	}
	for i := range payload.Entries {
		payload.Entries[i].Source = timesheet.SourceUser
	}
	report, err := h.Service.ValidateDrafts(r.Context(), actor, payload.Entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, actor timesheet.Actor, id, _ string) (timesheet.Entry, error) {
		return h.Service.Submit(ctx, actor, id)
	}, false)
}

func (h *Handler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, actor timesheet.Actor, id, _ string) (timesheet.Entry, error) {
		return h.Service.Resubmit(ctx, actor, id)
	}, false)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Approve, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reject, true)
}

type transitionFunc func(ctx context.Context, actor timesheet.Actor, id, comments string) (timesheet.Entry, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply transitionFunc, withComments bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload reviewPayload
	if withComments && r.ContentLength != 0 {
		if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
			return
		}
	}
	entry, err := apply(r.Context(), actor, chi.URLParam(r, "id"), strings.TrimSpace(payload.Comments))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, entry, middleware.GetRequestID(r.Context()))
}

func parseWeekParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	weekStart, err := timesheet.ParseWeekStart(chi.URLParam(r, "weekStart"))
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "weekStart", Reason: err.Error()}})
		return time.Time{}, false
	}
	return weekStart, true
}

type listQuery struct {
	EmployeeID string `query:"employeeId" json:"employeeId" validate:"omitempty,max=64"`
	From       string `query:"from" json:"from" validate:"omitempty,date"`
	To         string `query:"to" json:"to" validate:"omitempty,date"`
	Status     string `query:"status" json:"status" validate:"omitempty,oneofci=Draft Submitted Approved Rejected"`
	Year       int    `query:"year" json:"year" validate:"omitempty,min=1900,max=9999"`
	Limit      int    `query:"limit" json:"limit" validate:"omitempty,min=1"`
	Offset     int    `query:"offset" json:"offset" validate:"omitempty,min=0"`
}

func parseFilter(w http.ResponseWriter, r *http.Request) (timesheet.ListFilter, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var q listQuery
	if !shared.DecodeQuery(w, r, &q, requestID) {
		return timesheet.ListFilter{}, false
	}
	filter := timesheet.ListFilter{EmployeeID: q.EmployeeID, Year: q.Year}
	if q.From != "" {
		filter.From, _ = shared.ParseDate(q.From)
	}
	if q.To != "" {
		filter.To, _ = shared.ParseDate(q.To)
	}
	if issues := shared.DateRangeIssues("from", filter.From, "to", filter.To); len(issues) > 0 {
		shared.FailValidation(w, requestID, issues)
		return timesheet.ListFilter{}, false
	}
	if q.Status != "" {
		filter.Status, _ = timesheet.ParseStatus(q.Status)
	}
	filter.Limit, filter.Offset = shared.Page(q.Limit, q.Offset, 100, 500)
	return filter, true
}
