package audithandler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"timesheets/internal/domain/audit"
	"timesheets/internal/domain/auth"
	"timesheets/internal/transport/http/api"
	"timesheets/internal/transport/http/middleware"
	"timesheets/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/events", h.handleListEvents)
	})
}

type eventsQuery struct {
	Action         string `query:"action" json:"action" validate:"omitempty,max=100"`
	EntityType     string `query:"entityType" json:"entityType" validate:"omitempty,max=100"`
	EntityID       string `query:"entityId" json:"entityId" validate:"omitempty,max=100"`
	ActorUserID    string `query:"actorUserId" json:"actorUserId" validate:"omitempty,max=100"`
	IncludeDetails bool   `query:"includeDetails" json:"includeDetails"`
	Limit          int    `query:"limit" json:"limit" validate:"omitempty,min=1"`
	Offset         int    `query:"offset" json:"offset" validate:"omitempty,min=0"`
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var q eventsQuery
	if !shared.DecodeQuery(w, r, &q, middleware.GetRequestID(r.Context())) {
		return
	}
	limit, offset := shared.Page(q.Limit, q.Offset, 100, 500)
	filter := audit.Filter{
		Action:     q.Action,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		ActorUser:  q.ActorUserID,
	}

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}
	events, err := h.Service.List(r.Context(), filter, q.IncludeDetails, limit, offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}
