package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/requestctx"
)

func TestMemoryRecordCapturesRequestContext(t *testing.T) {
	ctx := requestctx.WithRequestID(context.Background(), "req-1")
	ctx = requestctx.WithClientIP(ctx, "203.0.113.5")

	m := NewMemory()
	require.NoError(t, m.Record(ctx, "u1", "timesheet.save", "timesheet", "ts-1", nil, map[string]string{"status": "Draft"}))
	require.NoError(t, m.Record(ctx, "u2", "timesheet.submit", "timesheet", "ts-1", map[string]string{"status": "Draft"}, map[string]string{"status": "Submitted"}))
	require.NoError(t, m.Record(ctx, "u1", "timesheet.save", "timesheet", "ts-2", nil, nil))

	events, err := m.ListForEntity(ctx, "timesheet", "ts-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "timesheet.submit", events[0].Action)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, "203.0.113.5", events[0].IP)
	assert.JSONEq(t, `{"status":"Draft"}`, string(events[0].Before))
	assert.Nil(t, events[1].Before)
}
