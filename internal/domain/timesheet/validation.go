package timesheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RawHours is an hour value exactly as the client sent it. JSON numbers and
// strings are both accepted; null and "" mean the day was left blank.
type RawHours string

func (h *RawHours) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*h = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = RawHours(s)
		return nil
	}
	*h = RawHours(data)
	return nil
}

func HoursOf(d decimal.Decimal) RawHours {
	return RawHours(d.String())
}

// Draft is an unvalidated entry as submitted by a client.
type Draft struct {
	ID             string   `json:"id,omitempty"`
	EmployeeID     string   `json:"employeeId,omitempty"`
	ProjectID      string   `json:"projectId"`
	TaskID         string   `json:"taskId"`
	WeekStartDate  string   `json:"weekStartDate"`
	MondayHours    RawHours `json:"mondayHours"`
	TuesdayHours   RawHours `json:"tuesdayHours"`
	WednesdayHours RawHours `json:"wednesdayHours"`
	ThursdayHours  RawHours `json:"thursdayHours"`
	FridayHours    RawHours `json:"fridayHours"`
	SaturdayHours  RawHours `json:"saturdayHours"`
	SundayHours    RawHours `json:"sundayHours"`
	Description    string   `json:"description"`
	Source         Source   `json:"source,omitempty"`
}

func (d Draft) hours() [7]RawHours {
	return [7]RawHours{
		d.MondayHours, d.TuesdayHours, d.WednesdayHours, d.ThursdayHours,
		d.FridayHours, d.SaturdayHours, d.SundayHours,
	}
}

// TaskIndex is a read-only snapshot of the project/task catalog.
type TaskIndex interface {
	ProjectOf(taskID string) (projectID string, ok bool)
}

// TaskCatalog maps task id to owning project id.
type TaskCatalog map[string]string

func (c TaskCatalog) ProjectOf(taskID string) (string, bool) {
	projectID, ok := c[taskID]
	return projectID, ok
}

type Warning struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Entries []int  `json:"entries,omitempty"`
}

type Result struct {
	Errors   []FieldError `json:"errors"`
	Warnings []Warning    `json:"warnings"`
}

func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

func (r *Result) add(field string, code Code, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Validate parses and checks a draft. Every check runs; the returned entry
// carries whatever could be parsed and must not be persisted unless the
// result is valid.
func Validate(d Draft, idx TaskIndex) (Entry, Result) {
	var res Result
	entry := Entry{
		ID:          strings.TrimSpace(d.ID),
		EmployeeID:  strings.TrimSpace(d.EmployeeID),
		ProjectID:   strings.TrimSpace(d.ProjectID),
		TaskID:      strings.TrimSpace(d.TaskID),
		Description: strings.TrimSpace(d.Description),
		Status:      StatusDraft,
	}

	if week, err := ParseWeekStart(d.WeekStartDate); err != nil {
		res.add("weekStartDate", CodeInvalidWeekStart, err.Error())
	} else {
		entry.WeekStartDate = week
	}
	checkReferences(&res, entry, idx)

	var hours [7]decimal.Decimal
	raw := d.hours()
	for _, day := range Days {
		value := strings.TrimSpace(string(raw[day]))
		if value == "" {
			continue
		}
		parsed, err := parseHours(value)
		if err != nil {
			res.add(day.Field(), CodeNotANumber, fmt.Sprintf("%s hours must be a number", day))
			continue
		}
		hours[day] = parsed
		checkHour(&res, day, parsed, d.Source)
	}
	entry.SetHours(hours)
	checkContent(&res, entry)
	return entry, res
}

// parseHours rejects values whose digit count or exponent fall outside what
// an hour figure can hold. Comparing or taking the remainder of such a value
// rescales it to a big.Int of the exponent's size.
func parseHours(value string) (decimal.Decimal, error) {
	if len(value) > maxHoursLength {
		return decimal.Zero, fmt.Errorf("hours value %q too long", value)
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	if exp := parsed.Exponent(); exp < minHoursExponent || exp > maxHoursExponent {
		return decimal.Zero, fmt.Errorf("hours value %q out of range", value)
	}
	return parsed, nil
}

// ValidateEntry runs the same checks against an already parsed entry.
func ValidateEntry(e Entry, src Source, idx TaskIndex) Result {
	var res Result
	if !IsWeekStart(e.WeekStartDate) {
		res.add("weekStartDate", CodeInvalidWeekStart, "week start date must be a Monday")
	}
	checkReferences(&res, e, idx)
	for _, day := range Days {
		checkHour(&res, day, e.Day(day), src)
	}
	checkContent(&res, e)
	return res
}

func checkReferences(res *Result, e Entry, idx TaskIndex) {
	if e.EmployeeID == "" {
		res.add("employeeId", CodeMissingEmployee, "employee is required")
	}
	if e.ProjectID == "" {
		res.add("projectId", CodeMissingProject, "project is required")
	}
	if e.TaskID == "" {
		res.add("taskId", CodeMissingTask, "task is required")
		return
	}
	if e.ProjectID == "" || idx == nil {
		return
	}
	if projectID, ok := idx.ProjectOf(e.TaskID); !ok || projectID != e.ProjectID {
		res.add("taskId", CodeTaskProjectMismatch, "task does not belong to the selected project")
	}
}

func checkHour(res *Result, day Day, value decimal.Decimal, src Source) {
	field := day.Field()
	if value.IsNegative() {
		res.add(field, CodeNegative, fmt.Sprintf("%s hours cannot be negative", day))
	}
	if value.GreaterThan(MaxDailyHours) {
		res.add(field, CodeExceedsDailyMax, fmt.Sprintf("%s hours cannot exceed %s", day, MaxDailyHours))
	}
	if src != SourceSystem && !value.Mod(hourIncrement).IsZero() {
		res.add(field, CodeNotQuarterHourIncrement, fmt.Sprintf("%s hours must be in quarter-hour increments", day))
	}
}

func checkContent(res *Result, e Entry) {
	hasHours := false
	for _, value := range e.Hours() {
		if value.IsPositive() {
			hasHours = true
			break
		}
	}
	if !hasHours {
		res.add("hours", CodeEmptyEntry, "at least one day must have hours")
	}
	if len([]rune(e.Description)) > MaxDescriptionLength {
		res.add("description", CodeDescriptionTooLong, fmt.Sprintf("description cannot exceed %d characters", MaxDescriptionLength))
	}
}

// WeekWarnings returns the advisory checks for one employee's week total.
func WeekWarnings(total decimal.Decimal) []Warning {
	switch {
	case total.GreaterThan(ExcessiveWeeklyHours):
		return []Warning{{Code: CodeExcessiveWeeklyHours, Message: fmt.Sprintf("weekly total of %s hours exceeds %s", total, ExcessiveWeeklyHours)}}
	case total.IsPositive() && total.LessThan(LowWeeklyHours):
		return []Warning{{Code: CodeLowWeeklyHours, Message: fmt.Sprintf("weekly total of %s hours is below %s", total, LowWeeklyHours)}}
	}
	return nil
}

// DuplicateWarnings flags every group of entries sharing a natural key. Each
// warning lists the indexes of all members of the group.
func DuplicateWarnings(entries []Entry) []Warning {
	groups := map[NaturalKey][]int{}
	var order []NaturalKey
	for i, e := range entries {
		if e.ProjectID == "" || e.TaskID == "" {
			continue
		}
		key := e.Key()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	var out []Warning
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		out = append(out, Warning{
			Code:    CodeDuplicateTaskEntry,
			Message: "another entry for this project and task already exists in the same week",
			Entries: members,
		})
	}
	return out
}

// CheckWeek returns week-total and duplicate warnings for entries that may
// span several employees and weeks.
func CheckWeek(entries []Entry) []Warning {
	type weekKey struct {
		employeeID string
		week       string
	}
	groups := map[weekKey][]int{}
	var order []weekKey
	for i, e := range entries {
		key := weekKey{employeeID: e.EmployeeID, week: WeekKey(e.WeekStartDate)}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var out []Warning
	for _, key := range order {
		members := groups[key]
		week := make([]Entry, 0, len(members))
		for _, i := range members {
			week = append(week, entries[i])
		}
		for _, w := range WeekWarnings(WeekTotal(week)) {
			w.Entries = members
			out = append(out, w)
		}
	}
	return append(out, DuplicateWarnings(entries)...)
}

type DraftReport struct {
	Index      int             `json:"index"`
	Errors     []FieldError    `json:"errors"`
	Warnings   []Warning       `json:"warnings"`
	TotalHours decimal.Decimal `json:"totalHours"`
}

type WeekReport struct {
	Valid      bool            `json:"valid"`
	TotalHours decimal.Decimal `json:"totalHours"`
	Entries    []DraftReport   `json:"entries"`
	Warnings   []Warning       `json:"warnings"`
}

// ValidateWeek validates a set of sibling drafts and attaches week-level and
// duplicate warnings to every entry they concern.
func ValidateWeek(drafts []Draft, idx TaskIndex) WeekReport {
	report := WeekReport{Valid: true, Entries: make([]DraftReport, len(drafts))}
	entries := make([]Entry, len(drafts))
	for i, d := range drafts {
		entry, res := Validate(d, idx)
		entries[i] = entry
		report.Entries[i] = DraftReport{Index: i, Errors: res.Errors, TotalHours: TaskTotal(entry)}
		if !res.Valid() {
			report.Valid = false
		}
	}
	report.TotalHours = WeekTotal(entries)
	report.Warnings = CheckWeek(entries)
	for _, w := range report.Warnings {
		for _, i := range w.Entries {
			report.Entries[i].Warnings = append(report.Entries[i].Warnings, w)
		}
	}
	sort.SliceStable(report.Warnings, func(i, j int) bool {
		return report.Warnings[i].Code < report.Warnings[j].Code
	})
	return report
}
