package timesheet

import (
	"strings"
	"time"
)

type Transition struct {
	Event    Event
	Actor    Actor
	Comments string
	At       time.Time
}

// Apply runs one lifecycle event against e and returns the next version of
// the entry. The state check runs before any guard, so an out-of-order event
// always reports IllegalTransition. Exactly one timestamp is stamped per
// transition and earlier stamps are kept.
func Apply(e Entry, t Transition, idx TaskIndex) (Entry, error) {
	next := e
	at := t.At.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch t.Event {
	case EventEdit:
		if !e.Status.Editable() {
			return e, ErrImmutableState
		}
		return next, nil

	case EventSubmit, EventResubmit:
		legal := e.Status == StatusRejected || (t.Event == EventSubmit && e.Status == StatusDraft)
		if !legal {
			return e, &TransitionError{From: e.Status, Event: t.Event}
		}
		if err := ValidateEntry(e, SourceSystem, idx).Err(); err != nil {
			return e, err
		}
		next.Status = StatusSubmitted
		next.SubmittedAt = &at

	case EventApprove:
		if e.Status != StatusSubmitted {
			return e, &TransitionError{From: e.Status, Event: t.Event}
		}
		if isOwner(t.Actor, e) {
			return e, ErrUnauthorized
		}
		next.Status = StatusApproved
		next.ApprovedAt = &at
		next.ReviewedBy = t.Actor.EmployeeID
		if comments := strings.TrimSpace(t.Comments); comments != "" {
			next.ApproverComments = comments
		}

	case EventReject:
		if e.Status != StatusSubmitted {
			return e, &TransitionError{From: e.Status, Event: t.Event}
		}
		if isOwner(t.Actor, e) {
			return e, ErrUnauthorized
		}
		comments := strings.TrimSpace(t.Comments)
		if comments == "" {
			return e, invalid("approverComments", CodeMissingComments, "comments are required when rejecting a timesheet")
		}
		next.Status = StatusRejected
		next.RejectedAt = &at
		next.ReviewedBy = t.Actor.EmployeeID
		next.ApproverComments = comments

	default:
		return e, &TransitionError{From: e.Status, Event: t.Event}
	}

	next.UpdatedAt = at
	return next, nil
}

// TargetStatus is the state an event moves an entry into.
func TargetStatus(event Event) (Status, bool) {
	switch event {
	case EventSubmit, EventResubmit:
		return StatusSubmitted, true
	case EventApprove:
		return StatusApproved, true
	case EventReject:
		return StatusRejected, true
	}
	return "", false
}

func isOwner(a Actor, e Entry) bool {
	return a.EmployeeID != "" && a.EmployeeID == e.EmployeeID
}
