package timesheet

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type WeekGroup struct {
	EmployeeID    string             `json:"employeeId"`
	EmployeeName  string             `json:"employeeName,omitempty"`
	WeekStartDate time.Time          `json:"weekStartDate"`
	WeekEndDate   time.Time          `json:"weekEndDate"`
	WeekNumber    int                `json:"weekNumber"`
	Year          int                `json:"year"`
	TotalHours    decimal.Decimal    `json:"totalHours"`
	DailyTotals   [7]decimal.Decimal `json:"dailyTotals"`
	Status        Status             `json:"status"`
	CanEdit       bool               `json:"canEdit"`
	Timesheets    []Entry            `json:"timesheets"`
}

// TaskTotal is the seven-day total of one entry.
func TaskTotal(e Entry) decimal.Decimal {
	hours := e.Hours()
	return decimal.Sum(decimal.Zero, hours[:]...)
}

// DailyTotal sums one weekday across entries.
func DailyTotal(entries []Entry, day Day) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Day(day))
	}
	return total
}

func WeekTotal(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(TaskTotal(e))
	}
	return total
}

// GroupStatus resolves the status of a week from its entries, ranking
// Submitted over Rejected over Draft over Approved. Only a week whose entries
// are all approved reads Approved.
func GroupStatus(entries []Entry) Status {
	var rejected, draft, approved bool
	for _, e := range entries {
		switch e.Status {
		case StatusSubmitted:
			return StatusSubmitted
		case StatusRejected:
			rejected = true
		case StatusDraft:
			draft = true
		case StatusApproved:
			approved = true
		}
	}
	switch {
	case rejected:
		return StatusRejected
	case draft:
		return StatusDraft
	case approved:
		return StatusApproved
	}
	return StatusDraft
}

func CanEdit(entries []Entry) bool {
	for _, e := range entries {
		if e.Status.Editable() {
			return true
		}
	}
	return false
}

// GroupByWeek projects entries into one group per employee and week, newest
// week first. Entries keep their input order inside a group.
func GroupByWeek(entries []Entry) []WeekGroup {
	type groupKey struct {
		employeeID string
		week       string
	}
	index := map[groupKey]int{}
	var groups []WeekGroup
	for _, e := range entries {
		key := groupKey{employeeID: e.EmployeeID, week: WeekKey(e.WeekStartDate)}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, WeekGroup{EmployeeID: e.EmployeeID, WeekStartDate: e.WeekStartDate})
		}
		groups[pos].Timesheets = append(groups[pos].Timesheets, e)
	}

	for i := range groups {
		fillGroup(&groups[i])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].WeekStartDate.Equal(groups[j].WeekStartDate) {
			return groups[i].WeekStartDate.After(groups[j].WeekStartDate)
		}
		return groups[i].EmployeeID < groups[j].EmployeeID
	})
	if groups == nil {
		return []WeekGroup{}
	}
	return groups
}

func fillGroup(g *WeekGroup) {
	g.WeekEndDate = WeekEnd(g.WeekStartDate)
	g.Year, g.WeekNumber = WeekNumber(g.WeekStartDate)
	g.TotalHours = WeekTotal(g.Timesheets)
	for _, day := range Days {
		g.DailyTotals[day] = DailyTotal(g.Timesheets, day)
	}
	g.Status = GroupStatus(g.Timesheets)
	g.CanEdit = CanEdit(g.Timesheets)
}

// Flatten returns the entries of every group in group order.
func Flatten(groups []WeekGroup) []Entry {
	var out []Entry
	for _, g := range groups {
		out = append(out, g.Timesheets...)
	}
	return out
}

// WithNames sets display names on groups. Unknown employees keep an empty name.
func WithNames(groups []WeekGroup, names map[string]string) []WeekGroup {
	for i := range groups {
		groups[i].EmployeeName = names[groups[i].EmployeeID]
	}
	return groups
}

type PendingSummary struct {
	TotalPending int             `json:"totalPending"`
	TotalHours   decimal.Decimal `json:"totalHours"`
	Employees    int             `json:"employees"`
}

type ApprovalQueue struct {
	Weeks   []WeekGroup    `json:"weeks"`
	Summary PendingSummary `json:"summary"`
}

// BuildApprovalQueue groups the submitted entries for review.
func BuildApprovalQueue(entries []Entry) ApprovalQueue {
	pending := make([]Entry, 0, len(entries))
	employees := map[string]struct{}{}
	for _, e := range entries {
		if e.Status != StatusSubmitted {
			continue
		}
		pending = append(pending, e)
		employees[e.EmployeeID] = struct{}{}
	}
	return ApprovalQueue{
		Weeks: GroupByWeek(pending),
		Summary: PendingSummary{
			TotalPending: len(pending),
			TotalHours:   WeekTotal(pending),
			Employees:    len(employees),
		},
	}
}

type StatusTotals struct {
	Status     Status          `json:"status"`
	Count      int             `json:"count"`
	TotalHours decimal.Decimal `json:"totalHours"`
}

// SummarizeByStatus counts entries and hours per status, always listing
// every status.
func SummarizeByStatus(entries []Entry) []StatusTotals {
	buckets := map[Status][]Entry{}
	for _, e := range entries {
		buckets[e.Status] = append(buckets[e.Status], e)
	}
	out := make([]StatusTotals, 0, len(Statuses))
	for _, status := range Statuses {
		out = append(out, StatusTotals{
			Status:     status,
			Count:      len(buckets[status]),
			TotalHours: WeekTotal(buckets[status]),
		})
	}
	return out
}
