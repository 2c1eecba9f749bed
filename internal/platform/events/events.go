package events

import (
	"context"
	"time"
)

// Event is a lifecycle notification published after a committed change.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

func (Noop) Close() error { return nil }
