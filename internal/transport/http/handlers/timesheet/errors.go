package timesheethandler

import (
	"errors"
	"log/slog"
	"net/http"

	"timesheets/internal/domain/timesheet"
	"timesheets/internal/transport/http/api"
	"timesheets/internal/transport/http/middleware"
)

// writeError maps a domain error kind onto the response envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch timesheet.KindOf(err) {
	case timesheet.KindValidationFailed:
		var verr *timesheet.ValidationError
		errors.As(err, &verr)
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "timesheet entry is invalid", map[string]any{"fields": verr.Errors}, requestID)
	case timesheet.KindIllegalTransition:
		var terr *timesheet.TransitionError
		errors.As(err, &terr)
		api.FailWithDetails(w, http.StatusConflict, "illegal_transition", err.Error(), map[string]any{"from": terr.From, "event": terr.Event}, requestID)
	case timesheet.KindImmutable:
		api.Fail(w, http.StatusConflict, "immutable_state", "timesheet entry can no longer be edited", requestID)
	case timesheet.KindConflict:
		var cerr *timesheet.ConflictError
		errors.As(err, &cerr)
		api.FailWithDetails(w, http.StatusConflict, "conflict", "an entry for this project, task and week already exists", map[string]any{"existingId": cerr.ExistingID}, requestID)
	case timesheet.KindNotFound:
		api.Fail(w, http.StatusNotFound, "not_found", "timesheet entry not found", requestID)
	case timesheet.KindUnauthorized:
		api.Fail(w, http.StatusForbidden, "forbidden", "not permitted for this timesheet entry", requestID)
	case timesheet.KindCanceled:
		slog.Warn("timesheet request canceled", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusServiceUnavailable, "unavailable", "request did not complete in time", requestID)
	default:
		slog.Error("timesheet request failed", "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "timesheet request failed", requestID)
	}
}
