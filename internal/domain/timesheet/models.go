package timesheet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"timesheets/internal/domain/auth"
)

type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var Days = [7]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayFields = [7]string{"mondayHours", "tuesdayHours", "wednesdayHours", "thursdayHours", "fridayHours", "saturdayHours", "sundayHours"}

func (d Day) Field() string {
	if d < Monday || d > Sunday {
		return ""
	}
	return dayFields[d]
}

func (d Day) String() string {
	if d < Monday || d > Sunday {
		return ""
	}
	return time.Weekday((int(d) + 1) % 7).String()
}

type Entry struct {
	ID               string          `json:"id"`
	EmployeeID       string          `json:"employeeId"`
	ProjectID        string          `json:"projectId"`
	TaskID           string          `json:"taskId"`
	WeekStartDate    time.Time       `json:"weekStartDate"`
	MondayHours      decimal.Decimal `json:"mondayHours"`
	TuesdayHours     decimal.Decimal `json:"tuesdayHours"`
	WednesdayHours   decimal.Decimal `json:"wednesdayHours"`
	ThursdayHours    decimal.Decimal `json:"thursdayHours"`
	FridayHours      decimal.Decimal `json:"fridayHours"`
	SaturdayHours    decimal.Decimal `json:"saturdayHours"`
	SundayHours      decimal.Decimal `json:"sundayHours"`
	Description      string          `json:"description"`
	Status           Status          `json:"status"`
	SubmittedAt      *time.Time      `json:"submittedAt,omitempty"`
	ApprovedAt       *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt       *time.Time      `json:"rejectedAt,omitempty"`
	ApproverComments string          `json:"approverComments,omitempty"`
	ReviewedBy       string          `json:"reviewedBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (e Entry) Hours() [7]decimal.Decimal {
	return [7]decimal.Decimal{
		e.MondayHours, e.TuesdayHours, e.WednesdayHours, e.ThursdayHours,
		e.FridayHours, e.SaturdayHours, e.SundayHours,
	}
}

func (e *Entry) SetHours(hours [7]decimal.Decimal) {
	e.MondayHours = hours[Monday]
	e.TuesdayHours = hours[Tuesday]
	e.WednesdayHours = hours[Wednesday]
	e.ThursdayHours = hours[Thursday]
	e.FridayHours = hours[Friday]
	e.SaturdayHours = hours[Saturday]
	e.SundayHours = hours[Sunday]
}

func (e Entry) Day(d Day) decimal.Decimal {
	if d < Monday || d > Sunday {
		return decimal.Zero
	}
	return e.Hours()[d]
}

func (e Entry) Key() NaturalKey {
	return NaturalKey{
		EmployeeID: e.EmployeeID,
		ProjectID:  e.ProjectID,
		TaskID:     e.TaskID,
		Week:       WeekKey(e.WeekStartDate),
	}
}

// NaturalKey identifies at most one entry per employee, task and week.
type NaturalKey struct {
	EmployeeID string
	ProjectID  string
	TaskID     string
	Week       string
}

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	UserID     string
	EmployeeID string
	Role       string
	// ReadAll is set when the role holds timesheets.read_all.
	ReadAll bool
}

// Privileged actors may act on any employee's entries.
func (a Actor) Privileged() bool {
	return a.ReadAll
}

func (a Actor) IsManager() bool {
	return a.Role == auth.RoleManager
}

type ListFilter struct {
	EmployeeID  string
	EmployeeIDs []string
	Status      Status
	From        time.Time
	To          time.Time
	Year        int
	Limit       int
	Offset      int
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeNoop    Outcome = "noop"
	OutcomeFailed  Outcome = "failed"
)

type ItemError struct {
	Kind       Kind         `json:"kind"`
	Message    string       `json:"message"`
	Fields     []FieldError `json:"fields,omitempty"`
	ExistingID string       `json:"existingId,omitempty"`
	From       Status       `json:"from,omitempty"`
	Event      Event        `json:"event,omitempty"`
}

type ItemResult struct {
	Index   int        `json:"index"`
	ID      string     `json:"id,omitempty"`
	Outcome Outcome    `json:"outcome"`
	Status  Status     `json:"status,omitempty"`
	Error   *ItemError `json:"error,omitempty"`
}

func (r ItemResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

type BulkResult struct {
	Processed int          `json:"processed"`
	Failed    int          `json:"failed"`
	Results   []ItemResult `json:"results"`
}

func succeeded(index int, entry Entry) ItemResult {
	return ItemResult{Index: index, ID: entry.ID, Outcome: OutcomeSuccess, Status: entry.Status}
}

func alreadyInState(index int, entry Entry) ItemResult {
	return ItemResult{Index: index, ID: entry.ID, Outcome: OutcomeNoop, Status: entry.Status}
}

func failed(index int, id string, err error) ItemResult {
	out := ItemResult{Index: index, ID: id, Outcome: OutcomeFailed}
	itemErr := &ItemError{Kind: KindOf(err), Message: err.Error()}
	var verr *ValidationError
	var terr *TransitionError
	var cerr *ConflictError
	switch {
	case errors.As(err, &verr):
		itemErr.Fields = verr.Errors
	case errors.As(err, &terr):
		itemErr.From = terr.From
		itemErr.Event = terr.Event
		out.Status = terr.From
	case errors.As(err, &cerr):
		itemErr.ExistingID = cerr.ExistingID
	}
	out.Error = itemErr
	return out
}

func tally(results []ItemResult) BulkResult {
	out := BulkResult{Results: results}
	for _, res := range results {
		if res.Failed() {
			out.Failed++
			continue
		}
		out.Processed++
	}
	if out.Results == nil {
		out.Results = []ItemResult{}
	}
	return out
}
