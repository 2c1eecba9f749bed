package timesheet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsertByNaturalKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	e := entryIn("")
	e.ID = ""
	first, err := store.Upsert(ctx, e)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, StatusDraft, first.Status)

	again := e
	again.MondayHours = decimal.NewFromInt(6)
	second, err := store.Upsert(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.MondayHours.Equal(decimal.NewFromInt(6)))

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStoreBulkUpsertConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	e := entryIn("")
	e.ID = ""

	results := store.BulkUpsert(ctx, []Entry{e, e})
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeSuccess, results[0].Outcome)
	require.True(t, results[1].Failed())
	assert.Equal(t, KindConflict, results[1].Error.Kind)
	assert.Equal(t, results[0].ID, results[1].Error.ExistingID)
}

func TestMemoryStoreRejectsEmptyEntryInBulk(t *testing.T) {
	e := entryIn("")
	e.ID = ""
	e.MondayHours = decimal.Zero

	results := NewMemoryStore().BulkUpsert(context.Background(), []Entry{e})
	require.True(t, results[0].Failed())
	assert.Equal(t, KindValidationFailed, results[0].Error.Kind)
}

func TestMemoryStoreLockedEntriesAreImmutable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	saved, err := store.Upsert(ctx, Entry{EmployeeID: "E1", ProjectID: "P1", TaskID: "T1", WeekStartDate: weekOf(2024, 6, 3), MondayHours: decimal.NewFromInt(8)})
	require.NoError(t, err)

	next := saved
	next.Status = StatusSubmitted
	_, err = store.CompareAndSwap(ctx, next, StatusDraft)
	require.NoError(t, err)

	edit := saved
	edit.MondayHours = decimal.NewFromInt(1)
	_, err = store.Upsert(ctx, edit)
	assert.ErrorIs(t, err, ErrImmutableState)

	edit.ID = ""
	_, err = store.Upsert(ctx, edit)
	assert.ErrorIs(t, err, ErrImmutableState)
}

func TestMemoryStoreCompareAndSwapStale(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	saved, err := store.Upsert(ctx, Entry{EmployeeID: "E1", ProjectID: "P1", TaskID: "T1", WeekStartDate: weekOf(2024, 6, 3), MondayHours: decimal.NewFromInt(8)})
	require.NoError(t, err)

	next := saved
	next.Status = StatusSubmitted
	_, err = store.CompareAndSwap(ctx, next, StatusRejected)
	assert.ErrorIs(t, err, ErrStaleStatus)

	next.ID = "missing"
	_, err = store.CompareAndSwap(ctx, next, StatusDraft)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreEditCannotCollideWithSibling(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := Entry{EmployeeID: "E1", ProjectID: "P1", WeekStartDate: weekOf(2024, 6, 3), MondayHours: decimal.NewFromInt(8)}

	a := base
	a.TaskID = "T1"
	a, err := store.Upsert(ctx, a)
	require.NoError(t, err)
	b := base
	b.TaskID = "T2"
	b, err = store.Upsert(ctx, b)
	require.NoError(t, err)

	b.TaskID = "T1"
	_, err = store.Upsert(ctx, b)
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, a.ID, cerr.ExistingID)
}

func TestMemoryStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, e := range []Entry{
		{EmployeeID: "E1", ProjectID: "P1", TaskID: "T1", WeekStartDate: weekOf(2024, 6, 3), MondayHours: decimal.NewFromInt(8)},
		{EmployeeID: "E1", ProjectID: "P1", TaskID: "T1", WeekStartDate: weekOf(2024, 5, 27), MondayHours: decimal.NewFromInt(8)},
		{EmployeeID: "E2", ProjectID: "P1", TaskID: "T1", WeekStartDate: weekOf(2024, 6, 3), MondayHours: decimal.NewFromInt(8)},
	} {
		_, err := store.Upsert(ctx, e)
		require.NoError(t, err)
	}

	week, err := store.GetByWeek(ctx, "E1", weekOf(2024, 6, 3))
	require.NoError(t, err)
	assert.Len(t, week, 1)

	some, err := store.List(ctx, ListFilter{EmployeeIDs: []string{"E1", "E2"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, weekOf(2024, 6, 3), some[0].WeekStartDate)

	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartialFailureSummarisesBatch(t *testing.T) {
	ok := succeeded(0, Entry{ID: "a", Status: StatusDraft})
	assert.NoError(t, partialFailure([]ItemResult{ok}))
	assert.NoError(t, partialFailure(nil))

	bad := failed(1, "b", ErrImmutableState)
	err := partialFailure([]ItemResult{ok, bad})
	require.Error(t, err)
	assert.Equal(t, "1 of 2 items failed", err.Error())
}
