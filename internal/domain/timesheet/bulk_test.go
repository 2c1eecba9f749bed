package timesheet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkSaveDuplicateNaturalKeyConflicts(t *testing.T) {
	svc, rec := newTestService(t)
	res := svc.BulkSave(context.Background(), owner, []Draft{draft("8"), draft("6")})

	require.Len(t, res.Results, 2)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)
	first, second := res.Results[0], res.Results[1]
	assert.Equal(t, OutcomeSuccess, first.Outcome)
	require.True(t, second.Failed())
	assert.Equal(t, KindConflict, second.Error.Kind)
	assert.Equal(t, first.ID, second.Error.ExistingID)
	assert.Equal(t, 1, rec.count(ActionSave))
}

func TestBulkSaveKeepsRequestOrderAcrossFailures(t *testing.T) {
	svc, _ := newTestService(t)
	bad := draft("0.1")
	other := draft("8")
	other.TaskID = "T2"
	foreign := draft("8")
	foreign.EmployeeID = "E2"

	res := svc.BulkSave(context.Background(), owner, []Draft{bad, draft("8"), foreign, other})
	require.Len(t, res.Results, 4)
	for i, r := range res.Results {
		assert.Equal(t, i, r.Index)
	}
	assert.Equal(t, KindValidationFailed, res.Results[0].Error.Kind)
	assert.Equal(t, "mondayHours", res.Results[0].Error.Fields[0].Field)
	assert.False(t, res.Results[1].Failed())
	assert.Equal(t, KindUnauthorized, res.Results[2].Error.Kind)
	assert.False(t, res.Results[3].Failed())
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Failed)
}

func TestBulkApproveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)

	var ids []string
	for _, task := range []string{"T1", "T2"} {
		d := draft("8")
		d.TaskID = task
		saved := saveDraft(t, svc, d)
		_, err := svc.Submit(ctx, owner, saved.ID)
		require.NoError(t, err)
		ids = append(ids, saved.ID)
	}

	first := svc.BulkApprove(ctx, manager, ids, "")
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, 0, first.Noops())

	second := svc.BulkApprove(ctx, manager, ids, "")
	assert.Equal(t, 2, second.Processed)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, 2, second.Noops())
	for _, r := range second.Results {
		assert.Equal(t, StatusApproved, r.Status)
	}
	assert.Equal(t, 2, rec.count(ActionApprove))
}

func TestBulkSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)

	var ids []string
	for _, task := range []string{"T1", "T2"} {
		d := draft("8")
		d.TaskID = task
		ids = append(ids, saveDraft(t, svc, d).ID)
	}

	first := svc.BulkSubmit(ctx, owner, ids)
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, 0, first.Noops())
	before, err := svc.Get(ctx, owner, ids[0])
	require.NoError(t, err)
	require.NotNil(t, before.SubmittedAt)

	second := svc.BulkSubmit(ctx, owner, ids)
	assert.Equal(t, 2, second.Processed)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, 2, second.Noops())
	for _, r := range second.Results {
		assert.Equal(t, OutcomeNoop, r.Outcome)
		assert.Equal(t, StatusSubmitted, r.Status)
	}

	after, err := svc.Get(ctx, owner, ids[0])
	require.NoError(t, err)
	require.NotNil(t, after.SubmittedAt)
	assert.True(t, before.SubmittedAt.Equal(*after.SubmittedAt))
	assert.Equal(t, 2, rec.count(ActionSubmit))
}

func TestBulkRejectRequiresComments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved := saveDraft(t, svc, draft("8"))
	_, err := svc.Submit(ctx, owner, saved.ID)
	require.NoError(t, err)

	res := svc.BulkReject(ctx, manager, []string{saved.ID}, " ")
	require.True(t, res.Results[0].Failed())
	assert.Equal(t, KindValidationFailed, res.Results[0].Error.Kind)

	res = svc.BulkReject(ctx, manager, []string{saved.ID}, "split by task")
	assert.Equal(t, StatusRejected, res.Results[0].Status)
}

func TestBulkSubmitReportsPerItemFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	saved := saveDraft(t, svc, draft("8"))

	res := svc.BulkSubmit(ctx, owner, []string{"missing", saved.ID})
	assert.Equal(t, KindNotFound, res.Results[0].Error.Kind)
	assert.Equal(t, OutcomeSuccess, res.Results[1].Outcome)
	assert.Equal(t, StatusSubmitted, res.Results[1].Status)

	res = svc.BulkApprove(ctx, manager, []string{saved.ID}, "")
	require.False(t, res.Results[0].Failed())

	res = svc.BulkSubmit(ctx, owner, []string{saved.ID})
	require.True(t, res.Results[0].Failed())
	assert.Equal(t, KindIllegalTransition, res.Results[0].Error.Kind)
	assert.Equal(t, StatusApproved, res.Results[0].Error.From)
}

func TestBulkApproveSameEntryConcurrently(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	svc.Concurrency = 8
	saved := saveDraft(t, svc, draft("8"))
	_, err := svc.Submit(ctx, owner, saved.ID)
	require.NoError(t, err)

	ids := make([]string, 16)
	for i := range ids {
		ids[i] = saved.ID
	}
	res := svc.BulkApprove(ctx, manager, ids, "")
	assert.Equal(t, 16, res.Processed)
	assert.Equal(t, 15, res.Noops())
	assert.Equal(t, 1, rec.count(ActionApprove))
}

func TestBulkCanceledContextFailsRemainingItems(t *testing.T) {
	svc, _ := newTestService(t)
	saved := saveDraft(t, svc, draft("8"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.BulkSubmit(ctx, owner, []string{saved.ID, saved.ID})
	assert.Equal(t, 2, res.Failed)
	for _, r := range res.Results {
		assert.Equal(t, KindCanceled, r.Error.Kind)
	}

	entry, err := svc.Get(context.Background(), owner, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, entry.Status)
}

func TestBulkEmptyBatch(t *testing.T) {
	svc, _ := newTestService(t)
	res := svc.BulkApprove(context.Background(), manager, nil, "")
	assert.NotNil(t, res.Results)
	assert.Zero(t, res.Processed)
}
