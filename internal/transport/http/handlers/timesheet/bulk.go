package timesheethandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"timesheets/internal/domain/timesheet"
	"timesheets/internal/transport/http/api"
	"timesheets/internal/transport/http/middleware"
	"timesheets/internal/transport/http/shared"
)

const defaultBulkMaxItems = 200

type bulkSavePayload struct {
	Entries []timesheet.Draft `json:"entries" validate:"required,min=1"`
}

type bulkIDsPayload struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type bulkReviewPayload struct {
	IDs      []string `json:"ids" validate:"required,min=1,dive,required"`
	Comments string   `json:"comments" validate:"max=2000"`
}

type bulkOp func(ctx context.Context, actor timesheet.Actor) timesheet.BulkResult

func (h *Handler) handleBulkSave(w http.ResponseWriter, r *http.Request) {
	var payload bulkSavePayload
	h.bulk(w, r, "timesheets.bulk-save", &payload, func() int { return len(payload.Entries) }, func(ctx context.Context, actor timesheet.Actor) timesheet.BulkResult {
		for i := range payload.Entries {
			payload.Entries[i].Source = timesheet.SourceUser
		}
		return h.Service.BulkSave(ctx, actor, payload.Entries)
	})
}

func (h *Handler) handleBulkSubmit(w http.ResponseWriter, r *http.Request) {
	var payload bulkIDsPayload
	h.bulk(w, r, "timesheets.bulk-submit", &payload, func() int { return len(payload.IDs) }, func(ctx context.Context, actor timesheet.Actor) timesheet.BulkResult {
		return h.Service.BulkSubmit(ctx, actor, payload.IDs)
	})
}

func (h *Handler) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	var payload bulkReviewPayload
	h.bulk(w, r, "timesheets.bulk-approve", &payload, func() int { return len(payload.IDs) }, func(ctx context.Context, actor timesheet.Actor) timesheet.BulkResult {
		return h.Service.BulkApprove(ctx, actor, payload.IDs, strings.TrimSpace(payload.Comments))
	})
}

func (h *Handler) handleBulkReject(w http.ResponseWriter, r *http.Request) {
	var payload bulkReviewPayload
	h.bulk(w, r, "timesheets.bulk-reject", &payload, func() int { return len(payload.IDs) }, func(ctx context.Context, actor timesheet.Actor) timesheet.BulkResult {
		return h.Service.BulkReject(ctx, actor, payload.IDs, strings.TrimSpace(payload.Comments))
	})
}

// bulk decodes payload, enforces the batch bound and runs op. A request that
// repeats an Idempotency-Key with the same body replays the stored result
// instead of running op again.
func (h *Handler) bulk(w http.ResponseWriter, r *http.Request, endpoint string, payload any, size func() int, op bulkOp) {
	requestID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), requestID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read request body", requestID)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if !shared.DecodeJSON(w, r, payload, requestID) {
		return
	}
	if !h.withinBatch(w, r, size()) {
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	hash := middleware.RequestHash(body)
	stored, found, err := h.Idempotency.Check(r.Context(), actor.UserID, endpoint, key, hash)
	switch {
	case errors.Is(err, middleware.ErrIdempotencyConflict):
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", requestID)
		return
	case err != nil:
		slog.Warn("idempotency check failed", "endpoint", endpoint, "err", err)
	case found:
		w.Header().Set("Idempotent-Replayed", "true")
		api.Success(w, stored, requestID)
		return
	}

	result := op(r.Context(), actor)
	h.Metrics.RecordBulk(len(result.Results), result.Failed, result.Noops())

	if key != "" {
		encoded, err := json.Marshal(result)
		if err == nil {
			err = h.Idempotency.Save(r.Context(), actor.UserID, endpoint, key, hash, encoded)
		}
		if err != nil {
			slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
		}
	}
	api.Success(w, result, requestID)
}

func (h *Handler) withinBatch(w http.ResponseWriter, r *http.Request, n int) bool {
	limit := h.Limits.BulkMaxItems
	if limit <= 0 {
		limit = defaultBulkMaxItems
	}
	if n <= limit {
		return true
	}
	api.FailWithDetails(w, http.StatusBadRequest, "batch_too_large", fmt.Sprintf("a batch may contain at most %d items", limit), map[string]any{"maxItems": limit, "items": n}, middleware.GetRequestID(r.Context()))
	return false
}
