package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"timesheets/internal/transport/http/api"
)

// ClientIP returns the first X-Forwarded-For hop, falling back to the peer
// address.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// DecodeJSON decodes the request body into dst and runs its validate tags.
// On failure the error response is already written and false is returned.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), requestID)
		case errors.Is(err, io.EOF):
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body is required", requestID)
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		}
		return false
	}
	if issues := StructIssues(dst); len(issues) > 0 {
		FailValidation(w, requestID, issues)
		return false
	}
	return true
}

// DecodeQuery copies the first value of each query parameter into the
// field of dst carrying the matching query tag, converting numbers, then
// runs its validate tags. On failure the error response is already written
// and false is returned.
func DecodeQuery(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	values := make(map[string]any, len(r.URL.Query()))
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
			values[key] = strings.TrimSpace(vals[0])
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "query",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to read query", requestID)
		return false
	}
	if err := decoder.Decode(values); err != nil {
		var decodeErr *mapstructure.Error
		if errors.As(err, &decodeErr) {
			issues := make([]ValidationIssue, 0, len(decodeErr.Errors))
			for _, msg := range decodeErr.Errors {
				issues = append(issues, ValidationIssue{Field: quotedName(msg), Reason: "must be a number"})
			}
			FailValidation(w, requestID, sortIssues(issues))
			return false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_query", "invalid query parameters", requestID)
		return false
	}
	if issues := StructIssues(dst); len(issues) > 0 {
		FailValidation(w, requestID, issues)
		return false
	}
	return true
}

// quotedName pulls the parameter name out of a decode error such as
// "cannot parse 'limit' as int".
func quotedName(msg string) string {
	_, rest, found := strings.Cut(msg, "'")
	if !found {
		return "query"
	}
	name, _, _ := strings.Cut(rest, "'")
	return name
}

// Page applies the default and ceiling to a decoded limit and offset.
func Page(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
