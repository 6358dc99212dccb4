// Package eventbus provides an in-process bus for orchestration events.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"joby/internal/domain"
)

type subscription struct {
	id      uint64
	handler domain.EventHandler
}

// Bus is an in-process, goroutine-safe event bus.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]subscription
	allSubs []subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  bool // guarded by mu
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		typed:  make(map[domain.EventType][]subscription),
		logger: logger,
	}
}

// Publish fans out an event to matching typed subscribers and all-event
// subscribers. Each handler runs in its own goroutine; panicking handlers
// are recovered.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscription, 0, len(b.typed[event.Type])+len(b.allSubs))
	subs = append(subs, b.typed[event.Type]...)
	subs = append(subs, b.allSubs...)
	// In-flight handlers must be registered while the closed check still
	// holds, or Close could start waiting before the Add lands.
	b.wg.Add(len(subs))
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(ctx, event, sub)
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event, sub subscription) {
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					"event", string(event.Type),
					"panic", r,
				)
			}
		}()
		sub.handler(ctx, event)
	}()
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.typed[eventType]
		for i, s := range subs {
			if s.id == id {
				b.typed[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.allSubs {
			if s.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

// Close prevents new publishes and waits for in-flight handlers to finish.
// Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	wasClosed := b.closed
	b.closed = true
	b.mu.Unlock()
	if wasClosed {
		return
	}
	b.wg.Wait()
}

var _ domain.EventBus = (*Bus)(nil)
