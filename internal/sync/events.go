package sync

import (
	"sync"
	"time"
)

// EventType identifies a replication lifecycle event
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventSyncCompleted EventType = "sync_completed"
	EventSyncFailed    EventType = "sync_failed"
	EventOrderQueued   EventType = "order_queued"
	EventOrderSynced   EventType = "order_synced"
)

// Event is published on replication state changes so the UI layer can show
// per-order and per-run progress.
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
	TableID    string    `json:"table_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventBus is a small synchronous pub/sub for replication events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[int]func(Event)
	nextID      int
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[int]func(Event))}
}

// Subscribe registers a callback and returns an unsubscribe function.
// Callbacks run on the publisher's goroutine; keep them short.
func (b *EventBus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event to all current subscribers.
func (b *EventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}
