package timesheet

import (
	"fmt"
	"strings"
	"time"
)

const weekLayout = "2006-01-02"

// WeekStart returns the Monday, at midnight UTC, of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func WeekEnd(weekStart time.Time) time.Time {
	return WeekStart(weekStart).AddDate(0, 0, 6)
}

func IsWeekStart(t time.Time) bool {
	return !t.IsZero() && t.Weekday() == time.Monday
}

// ParseWeekStart parses a YYYY-MM-DD date that must fall on a Monday.
func ParseWeekStart(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("week start date is required")
	}
	parsed, err := time.Parse(weekLayout, raw)
	if err != nil {
		if ts, tsErr := time.Parse(time.RFC3339, raw); tsErr == nil {
			parsed = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		} else {
			return time.Time{}, fmt.Errorf("week start date must be YYYY-MM-DD: %w", err)
		}
	}
	if !IsWeekStart(parsed) {
		return time.Time{}, fmt.Errorf("week start date %s is not a Monday", parsed.Format(weekLayout))
	}
	return parsed, nil
}

func WeekKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(weekLayout)
}

func WeekNumber(weekStart time.Time) (year, week int) {
	return weekStart.ISOWeek()
}
