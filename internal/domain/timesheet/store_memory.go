package timesheet

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps entries in process. It enforces the same natural key and
// status rules as the Postgres store.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]Entry
	byKey map[NaturalKey]string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  map[string]Entry{},
		byKey: map[NaturalKey]string{},
		now:   time.Now,
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	key := entry.Key()

	if entry.ID == "" {
		id, exists := s.byKey[key]
		if !exists {
			entry.ID = uuid.NewString()
			entry.Status = StatusDraft
			entry.SubmittedAt, entry.ApprovedAt, entry.RejectedAt = nil, nil, nil
			entry.ApproverComments, entry.ReviewedBy = "", ""
			entry.CreatedAt = now
			entry.UpdatedAt = now
			s.byID[entry.ID] = entry
			s.byKey[key] = entry.ID
			return entry, nil
		}
		entry.ID = id
	}

	current, ok := s.byID[entry.ID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if !current.Status.Editable() {
		return Entry{}, ErrImmutableState
	}
	if otherID, taken := s.byKey[key]; taken && otherID != current.ID {
		return Entry{}, &ConflictError{ExistingID: otherID}
	}

	updated := current
	updated.ProjectID = entry.ProjectID
	updated.TaskID = entry.TaskID
	updated.WeekStartDate = entry.WeekStartDate
	updated.SetHours(entry.Hours())
	updated.Description = entry.Description
	updated.UpdatedAt = now

	delete(s.byKey, current.Key())
	s.byKey[updated.Key()] = updated.ID
	s.byID[updated.ID] = updated
	return updated, nil
}

func (s *MemoryStore) BulkUpsert(ctx context.Context, entries []Entry) []ItemResult {
	return upsertEach(ctx, entries, s.Upsert)
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) GetByWeek(ctx context.Context, employeeID string, weekStart time.Time) ([]Entry, error) {
	return s.List(ctx, ListFilter{EmployeeID: employeeID, From: weekStart, To: weekStart})
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]Entry, 0, len(s.byID))
	for _, e := range s.byID {
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStartDate.Equal(out[j].WeekStartDate) {
			return out[i].WeekStartDate.After(out[j].WeekStartDate)
		}
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Entry{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, next Entry, expected Status) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[next.ID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if current.Status != expected {
		return Entry{}, ErrStaleStatus
	}
	current.Status = next.Status
	current.SubmittedAt = next.SubmittedAt
	current.ApprovedAt = next.ApprovedAt
	current.RejectedAt = next.RejectedAt
	current.ApproverComments = next.ApproverComments
	current.ReviewedBy = next.ReviewedBy
	current.UpdatedAt = s.now().UTC()
	s.byID[current.ID] = current
	return current, nil
}

func matches(e Entry, f ListFilter) bool {
	if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
		return false
	}
	if len(f.EmployeeIDs) > 0 && !slices.Contains(f.EmployeeIDs, e.EmployeeID) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && e.WeekStartDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.WeekStartDate.After(f.To) {
		return false
	}
	if f.Year != 0 {
		if year, _ := WeekNumber(e.WeekStartDate); year != f.Year {
			return false
		}
	}
	return true
}
