package timesheet

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/domain/auth"
	"timesheets/internal/platform/events"
)

type fakeDirectory struct {
	tasks    TaskCatalog
	managers map[string]string
	users    map[string]string
	names    map[string]string
}

func (f *fakeDirectory) TaskCatalog(_ context.Context, taskIDs []string) (TaskCatalog, error) {
	out := TaskCatalog{}
	for _, id := range taskIDs {
		if p, ok := f.tasks[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeDirectory) EmployeeIDByUserID(_ context.Context, userID string) (string, error) {
	return f.users[userID], nil
}

func (f *fakeDirectory) IsManagerOf(_ context.Context, managerID, employeeID string) (bool, error) {
	return managerID != "" && f.managers[employeeID] == managerID, nil
}

func (f *fakeDirectory) DirectReports(_ context.Context, managerID string) ([]string, error) {
	var out []string
	for emp, mgr := range f.managers {
		if mgr == managerID {
			out = append(out, emp)
		}
	}
	return out, nil
}

func (f *fakeDirectory) DisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type recorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *recorder) Record(_ context.Context, _, action, _, _ string, _, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

func (r *recorder) Publish(_ context.Context, evt events.Event) error {
	return r.Record(context.Background(), "", "event:"+evt.Type, "", "", nil, nil)
}

func (r *recorder) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a == action {
			n++
		}
	}
	return n
}

var (
	manager      = Actor{UserID: "u-m1", EmployeeID: "M1", Role: auth.RoleManager}
	otherManager = Actor{UserID: "u-m2", EmployeeID: "M2", Role: auth.RoleManager}
	hr           = Actor{UserID: "u-h1", EmployeeID: "H1", Role: auth.RoleHR, ReadAll: true}
)

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	dir := &fakeDirectory{
		tasks:    TaskCatalog{"T1": "P1", "T2": "P1"},
		managers: map[string]string{"E1": "M1", "E2": "M2"},
		users:    map[string]string{"u-e1": "E1"},
		names:    map[string]string{"E1": "Ada Lovelace"},
	}
	rec := &recorder{}
	return NewService(NewMemoryStore(), dir, rec, rec), rec
}

func saveDraft(t *testing.T, svc *Service, d Draft) Entry {
	t.Helper()
	saved, _, err := svc.Save(context.Background(), owner, d)
	require.NoError(t, err)
	return saved
}

func TestServiceFullApprovalFlow(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)

	saved, warnings, err := svc.Save(ctx, owner, draft("8"))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, CodeLowWeeklyHours, warnings[0].Code)

	submitted, err := svc.Submit(ctx, owner, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, submitted.Status)
	assert.NotNil(t, submitted.SubmittedAt)

	approved, err := svc.Approve(ctx, manager, saved.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "M1", approved.ReviewedBy)

	_, _, err = svc.Save(ctx, owner, Draft{ID: saved.ID, ProjectID: "P1", TaskID: "T1", WeekStartDate: "2024-06-03", MondayHours: "4"})
	assert.ErrorIs(t, err, ErrImmutableState)

	_, err = svc.Approve(ctx, manager, saved.ID, "")
	assert.Equal(t, KindIllegalTransition, KindOf(err))

	assert.Equal(t, 1, rec.count(ActionSave))
	assert.Equal(t, 1, rec.count(ActionSubmit))
	assert.Equal(t, 1, rec.count(ActionApprove))
	assert.Equal(t, 1, rec.count("event:"+ActionApprove))
}

func TestServiceRejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved := saveDraft(t, svc, draft("8"))
	_, err := svc.Submit(ctx, owner, saved.ID)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, manager, saved.ID, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(CodeMissingComments))

	rejected, err := svc.Reject(ctx, manager, saved.ID, "needs detail")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "needs detail", rejected.ApproverComments)
	require.NotNil(t, rejected.RejectedAt)

	edited, _, err := svc.Save(ctx, owner, Draft{ID: saved.ID, ProjectID: "P1", TaskID: "T1", WeekStartDate: "2024-06-03", MondayHours: "6", Description: "more detail"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, edited.Status)

	again, err := svc.Resubmit(ctx, owner, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, again.Status)

	_, err = svc.Resubmit(ctx, owner, saved.ID)
	assert.Equal(t, KindIllegalTransition, KindOf(err))
}

func TestServiceAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved := saveDraft(t, svc, draft("8"))
	_, err := svc.Submit(ctx, owner, saved.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, owner, saved.ID, "")
	assert.ErrorIs(t, err, ErrUnauthorized, "employees cannot approve their own entry")

	_, err = svc.Approve(ctx, otherManager, saved.ID, "")
	assert.ErrorIs(t, err, ErrUnauthorized, "only the reporting manager may approve")

	_, err = svc.Submit(ctx, manager, saved.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := draft("8")
	other.EmployeeID = "E2"
	_, _, err = svc.Save(ctx, owner, other)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Get(ctx, otherManager, saved.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Get(ctx, manager, saved.ID)
	assert.NoError(t, err)

	approved, err := svc.Approve(ctx, hr, saved.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", approved.ApproverComments)
}

func TestServiceSaveReportsValidationErrors(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Save(context.Background(), owner, draft("0.1"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(CodeNotQuarterHourIncrement))

	d := draft("8")
	d.TaskID = "T9"
	_, _, err = svc.Save(context.Background(), owner, d)
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(CodeTaskProjectMismatch))
}

func TestServiceResolveActor(t *testing.T) {
	svc, _ := newTestService(t)
	actor, err := svc.ResolveActor(context.Background(), "u-e1", auth.RoleEmployee, "")
	require.NoError(t, err)
	assert.Equal(t, "E1", actor.EmployeeID)

	assert.False(t, actor.ReadAll)

	actor, err = svc.ResolveActor(context.Background(), "u-x", auth.RoleHR, "H9")
	require.NoError(t, err)
	assert.Equal(t, "H9", actor.EmployeeID)
	assert.True(t, actor.ReadAll)
}

type grants map[string][]string

func (g grants) HasPermission(_ context.Context, role, permission string) (bool, error) {
	if role == "broken" {
		return false, errors.New("permission store unavailable")
	}
	return slices.Contains(g[role], permission), nil
}

func TestServiceReadAllComesFromPermissionStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saveDraft(t, svc, draft("8"))

	// A manager outside the reporting line sees nothing until the role
	// holds the organisation-wide grant.
	outsider, err := svc.ResolveActor(ctx, "u-m2", auth.RoleManager, "M2")
	require.NoError(t, err)
	_, err = svc.List(ctx, outsider, ListFilter{EmployeeID: "E1"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	svc.Permissions = grants{auth.RoleManager: {auth.PermTimesheetReadAll}}
	outsider, err = svc.ResolveActor(ctx, "u-m2", auth.RoleManager, "M2")
	require.NoError(t, err)
	entries, err := svc.List(ctx, outsider, ListFilter{EmployeeID: "E1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	svc.Permissions = grants{}
	hrActor, err := svc.ResolveActor(ctx, "u-h1", auth.RoleHR, "H1")
	require.NoError(t, err)
	assert.False(t, hrActor.ReadAll)

	_, err = svc.ResolveActor(ctx, "u-x", "broken", "X1")
	assert.Error(t, err)
}

func TestServiceWeekView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	empty, err := svc.Week(ctx, owner, "", weekOf(2024, 6, 10))
	require.NoError(t, err)
	assert.Empty(t, empty.Week.Timesheets)
	assert.NotNil(t, empty.Week.Timesheets)
	assert.True(t, empty.Week.TotalHours.IsZero())

	saveDraft(t, svc, draft("8"))
	second := draft("8")
	second.TaskID = "T2"
	saveDraft(t, svc, second)

	view, err := svc.Week(ctx, owner, "E1", weekOf(2024, 6, 3))
	require.NoError(t, err)
	assert.Len(t, view.Week.Timesheets, 2)
	assert.Equal(t, "Ada Lovelace", view.Week.EmployeeName)
	assert.True(t, view.Week.CanEdit)
	require.Len(t, view.Warnings, 1)
	assert.Equal(t, CodeLowWeeklyHours, view.Warnings[0].Code)
}

func TestServiceApprovalQueueScopedToReports(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mine := saveDraft(t, svc, draft("8"))
	_, err := svc.Submit(ctx, owner, mine.ID)
	require.NoError(t, err)

	e2 := Actor{UserID: "u-e2", EmployeeID: "E2", Role: auth.RoleEmployee}
	d := draft("8")
	d.EmployeeID = "E2"
	theirs, _, err := svc.Save(ctx, e2, d)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, e2, theirs.ID)
	require.NoError(t, err)

	queue, err := svc.ApprovalQueue(ctx, manager, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, queue.Summary.TotalPending)
	require.Len(t, queue.Weeks, 1)
	assert.Equal(t, "E1", queue.Weeks[0].EmployeeID)

	all, err := svc.ApprovalQueue(ctx, hr, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Summary.TotalPending)

	_, err = svc.ApprovalQueue(ctx, owner, ListFilter{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.ApprovalQueue(ctx, manager, ListFilter{EmployeeID: "E2"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestServiceListAndSummaryScope(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saveDraft(t, svc, draft("8"))

	list, err := svc.List(ctx, owner, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.List(ctx, owner, ListFilter{EmployeeID: "E2"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	history, err := svc.History(ctx, owner, ListFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Ada Lovelace", history[0].EmployeeName)

	summary, err := svc.StatusSummary(ctx, hr, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary[0].Count)
	assert.Equal(t, StatusDraft, summary[0].Status)
}

// racingStore lets another reviewer win the first compare-and-swap.
type racingStore struct {
	*MemoryStore
	once sync.Once
}

func (s *racingStore) CompareAndSwap(ctx context.Context, next Entry, expected Status) (Entry, error) {
	var raced bool
	s.once.Do(func() {
		winner := next
		winner.Status = StatusRejected
		_, _ = s.MemoryStore.CompareAndSwap(ctx, winner, expected)
		raced = true
	})
	if raced {
		return Entry{}, ErrStaleStatus
	}
	return s.MemoryStore.CompareAndSwap(ctx, next, expected)
}

func TestServiceTransitionReevaluatesAfterLostRace(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved := saveDraft(t, svc, draft("8"))
	_, err := svc.Submit(ctx, owner, saved.ID)
	require.NoError(t, err)

	svc.Store = &racingStore{MemoryStore: svc.Store.(*MemoryStore)}
	_, err = svc.Approve(ctx, manager, saved.ID, "")
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusRejected, terr.From)
}
