package timesheet

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

var Statuses = []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatus matches raw against the known statuses ignoring case.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Editable reports whether content fields may change in this state.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

type Event string

const (
	EventSubmit   Event = "submit"
	EventResubmit Event = "resubmit"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventEdit     Event = "edit"
)

// Source records who produced the hour values of a draft.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

type Code string

const (
	CodeMissingProject          Code = "MissingProject"
	CodeMissingTask             Code = "MissingTask"
	CodeTaskProjectMismatch     Code = "TaskProjectMismatch"
	CodeNotANumber              Code = "NotANumber"
	CodeNegative                Code = "Negative"
	CodeExceedsDailyMax         Code = "ExceedsDailyMax"
	CodeNotQuarterHourIncrement Code = "NotQuarterHourIncrement"
	CodeEmptyEntry              Code = "EmptyEntry"
	CodeInvalidWeekStart        Code = "InvalidWeekStart"
	CodeMissingEmployee         Code = "MissingEmployee"
	CodeDescriptionTooLong      Code = "DescriptionTooLong"
	CodeMissingComments         Code = "MissingComments"

	CodeExcessiveWeeklyHours Code = "ExcessiveWeeklyHours"
	CodeLowWeeklyHours       Code = "LowWeeklyHours"
	CodeDuplicateTaskEntry   Code = "DuplicateTaskEntry"
)

const MaxDescriptionLength = 500

const (
	maxHoursLength   = 32
	minHoursExponent = -12
	maxHoursExponent = 4
)

var (
	MaxDailyHours        = decimal.NewFromInt(24)
	ExcessiveWeeklyHours = decimal.NewFromInt(80)
	LowWeeklyHours       = decimal.NewFromInt(20)
	hourIncrement        = decimal.RequireFromString("0.25")
)

const (
	ActionSave     = "timesheet.save"
	ActionSubmit   = "timesheet.submit"
	ActionResubmit = "timesheet.resubmit"
	ActionApprove  = "timesheet.approve"
	ActionReject   = "timesheet.reject"

	EntityType = "timesheet"
)
