package timesheet

import (
	"context"
	"fmt"
	"time"
)

type StoreAPI interface {
	// Upsert creates the entry, or overwrites the editable entry with the same
	// id or natural key. Locked entries return ErrImmutableState.
	Upsert(ctx context.Context, entry Entry) (Entry, error)
	// BulkUpsert commits every entry independently.
	BulkUpsert(ctx context.Context, entries []Entry) []ItemResult
	GetByID(ctx context.Context, id string) (Entry, error)
	GetByWeek(ctx context.Context, employeeID string, weekStart time.Time) ([]Entry, error)
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
	// CompareAndSwap persists next only while the stored status still equals
	// expected, returning ErrStaleStatus otherwise.
	CompareAndSwap(ctx context.Context, next Entry, expected Status) (Entry, error)
}

func failedCount(results []ItemResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// partialFailure summarises failed items of a batch, or nil when every item
// succeeded.
func partialFailure(results []ItemResult) error {
	if n := failedCount(results); n > 0 {
		return fmt.Errorf("%d of %d items failed", n, len(results))
	}
	return nil
}

// upsertEach implements BulkUpsert on top of a single-entry upsert. Items are
// applied in order so a repeated natural key in the same batch conflicts with
// the id assigned to its first occurrence.
func upsertEach(ctx context.Context, entries []Entry, upsert func(context.Context, Entry) (Entry, error)) []ItemResult {
	results := make([]ItemResult, len(entries))
	seen := map[NaturalKey]string{}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			results[i] = failed(i, entry.ID, err)
			continue
		}
		if !TaskTotal(entry).IsPositive() {
			results[i] = failed(i, entry.ID, invalid("hours", CodeEmptyEntry, "at least one day must have hours"))
			continue
		}
		key := entry.Key()
		if existingID, dup := seen[key]; dup && existingID != entry.ID {
			results[i] = failed(i, entry.ID, &ConflictError{ExistingID: existingID})
			continue
		}
		saved, err := upsert(ctx, entry)
		if err != nil {
			results[i] = failed(i, entry.ID, err)
			continue
		}
		seen[key] = saved.ID
		results[i] = succeeded(i, saved)
	}
	return results
}
