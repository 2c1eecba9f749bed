package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("timesheet entry not found")
	ErrImmutableState = errors.New("timesheet entry can no longer be changed")
	ErrUnauthorized   = errors.New("actor is not permitted to change this timesheet entry")

	// ErrStaleStatus is returned by CompareAndSwap when the stored status no
	// longer matches the expected one.
	ErrStaleStatus = errors.New("timesheet entry status changed concurrently")
)

type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	codes := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		codes = append(codes, string(fe.Code))
	}
	return "timesheet validation failed: " + strings.Join(codes, ", ")
}

func (e *ValidationError) Has(code Code) bool {
	for _, fe := range e.Errors {
		if fe.Code == code {
			return true
		}
	}
	return false
}

type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a timesheet entry in %s state", e.Event, e.From)
}

type ConflictError struct {
	ExistingID string
}

func (e *ConflictError) Error() string {
	return "a timesheet entry for this project, task and week already exists: " + e.ExistingID
}

type Kind string

const (
	KindValidationFailed  Kind = "validationFailed"
	KindIllegalTransition Kind = "illegalTransition"
	KindConflict          Kind = "conflict"
	KindImmutable         Kind = "immutable"
	KindNotFound          Kind = "notFound"
	KindUnauthorized      Kind = "unauthorized"
	KindCanceled          Kind = "canceled"
	KindError             Kind = "error"
)

// KindOf classifies err into one of the domain error kinds. Anything that is
// not a domain condition is an infrastructure error.
func KindOf(err error) Kind {
	var verr *ValidationError
	var terr *TransitionError
	var cerr *ConflictError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return KindValidationFailed
	case errors.As(err, &terr):
		return KindIllegalTransition
	case errors.As(err, &cerr):
		return KindConflict
	case errors.Is(err, ErrImmutableState):
		return KindImmutable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	}
	return KindError
}

func invalid(field string, code Code, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Code: code, Message: message}}}
}
