package timesheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, WeekStart(time.Date(2024, 6, 3, 15, 4, 0, 0, time.UTC)))
	assert.Equal(t, monday, WeekStart(time.Date(2024, 6, 9, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, monday, WeekStart(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), WeekEnd(monday))
}

func TestParseWeekStart(t *testing.T) {
	got, err := ParseWeekStart("2024-06-03")
	require.NoError(t, err)
	assert.True(t, IsWeekStart(got))

	got, err = ParseWeekStart("2024-06-03T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", WeekKey(got))

	for _, raw := range []string{"", "2024-06-04", "03/06/2024"} {
		_, err := ParseWeekStart(raw)
		assert.Error(t, err, raw)
	}
}

func TestWeekNumberAcrossYearBoundary(t *testing.T) {
	year, week := WeekNumber(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, year)
	assert.Equal(t, 1, week)
}
