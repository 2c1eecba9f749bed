package audit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"timesheets/internal/requestctx"
)

// Memory keeps audit events in process. Used by tests and local runs without
// a database.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error {
	beforeJSON, afterJSON, err := marshalPair(before, after)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		ID:         strconv.Itoa(len(m.events) + 1),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestctx.GetRequestID(ctx),
		IP:         requestctx.GetClientIP(ctx),
		CreatedAt:  time.Now().UTC(),
		Before:     beforeJSON,
		After:      afterJSON,
	})
	return nil
}

func (m *Memory) ListForEntity(_ context.Context, entityType, entityID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Event{}
	for i := len(m.events) - 1; i >= 0; i-- {
		evt := m.events[i]
		if evt.EntityType == entityType && evt.EntityID == entityID {
			out = append(out, evt)
		}
	}
	return out, nil
}
