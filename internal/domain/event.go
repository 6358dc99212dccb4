package domain

import (
	"context"
	"time"
)

// EventType identifies an orchestration event.
type EventType string

const (
	// EventTurnCompleted fires after a turn is fully processed and
	// persisted.
	EventTurnCompleted EventType = "turn.completed"
	// EventStateTransition fires when a turn moves a session to a new
	// FSM state.
	EventStateTransition EventType = "state.transition"
	// EventAgentFailed fires when an agent call returns a failed status.
	EventAgentFailed EventType = "agent.failed"
	// EventDegradedMode fires when the profile store enters degraded mode.
	EventDegradedMode EventType = "store.degraded"
)

// Event is an orchestration event published on the bus.
type Event struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus fans orchestration events out to subscribers.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
}
