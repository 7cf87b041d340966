package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
)

func queueOrder(id, tableID string) *models.Order {
	order := &models.Order{ID: id, TableID: tableID, Status: models.OrderStatusOpen}
	order.SetItems([]models.OrderItem{{MenuItemID: "m-1", Name: "Soup", Quantity: 1, PriceCents: 500}})
	order.TotalCents = order.SubtotalCents
	order.UpdatedAt = time.Now().UTC()
	order.Dirty = true
	return order
}

func TestEnqueueIsIdempotent(t *testing.T) {
	fs := newFakeStore()
	q := NewWriteQueue(fs, newFakeAPI(), NewEventBus(), 3)

	order := queueOrder("o-1", "t-1")
	fs.Put(order)

	if err := q.Enqueue(order); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}
	if err := q.Enqueue(order); err != nil {
		t.Fatalf("Failed to re-enqueue: %v", err)
	}

	count, _ := q.Count("")
	if count != 1 {
		t.Errorf("Expected 1 entry after duplicate enqueue, got %d", count)
	}
}

func TestDrainTransmitsInFIFOOrder(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	q := NewWriteQueue(fs, api, NewEventBus(), 3)

	for _, id := range []string{"o-a", "o-b", "o-c"} {
		order := queueOrder(id, "t-1")
		fs.Put(order)
		q.Enqueue(order)
	}

	if err := q.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	want := []string{"o-a", "o-b", "o-c"}
	if len(api.createCalls) != 3 {
		t.Fatalf("Expected 3 creates, got %d", len(api.createCalls))
	}
	for i, id := range want {
		if api.createCalls[i] != id {
			t.Errorf("Expected %s at position %d, got %s", id, i, api.createCalls[i])
		}
	}

	count, _ := q.Count("")
	if count != 0 {
		t.Errorf("Expected empty queue after drain, got %d", count)
	}

	// Orders become clean once their entry is transmitted
	for _, id := range want {
		order, _ := fs.GetOrder(id)
		if order.Dirty {
			t.Errorf("Expected %s to be clean after drain", id)
		}
	}
}

func TestDrainSkipsRejectedEntryAndContinues(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	q := NewWriteQueue(fs, api, NewEventBus(), 3)

	for _, id := range []string{"o-a", "o-b", "o-c"} {
		order := queueOrder(id, "t-1")
		fs.Put(order)
		q.Enqueue(order)
	}
	api.failCreateIDs["o-a"] = errors.New("order references unknown menu item")

	if err := q.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	// The rejection of o-a must not block o-b and o-c.
	if !api.has(models.CollectionOrders, "o-b") || !api.has(models.CollectionOrders, "o-c") {
		t.Error("Expected later entries to transmit despite earlier rejection")
	}

	writes, _ := q.Entries()
	if len(writes) != 1 || writes[0].LocalID != "o-a" {
		t.Fatalf("Expected only o-a to remain, got %+v", writes)
	}
	if writes[0].AttemptCount != 1 {
		t.Errorf("Expected 1 recorded attempt, got %d", writes[0].AttemptCount)
	}
	if writes[0].LastError == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestDrainStopsOnNetworkError(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	q := NewWriteQueue(fs, api, NewEventBus(), 3)

	for _, id := range []string{"o-a", "o-b"} {
		order := queueOrder(id, "t-1")
		fs.Put(order)
		q.Enqueue(order)
	}
	api.setNetworkDown(true)

	if err := q.ProcessQueue(context.Background()); err == nil {
		t.Fatal("Expected drain to report the network failure")
	}

	// Systemic failure: only the first entry was attempted, both remain.
	if len(api.createCalls) != 1 {
		t.Errorf("Expected drain to stop after first attempt, got %d", len(api.createCalls))
	}
	count, _ := q.Count("")
	if count != 2 {
		t.Errorf("Expected both entries to remain, got %d", count)
	}

	// Once the link is back a fresh drain replays everything.
	api.setNetworkDown(false)
	if err := q.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("Second drain failed: %v", err)
	}
	count, _ = q.Count("")
	if count != 0 {
		t.Errorf("Expected empty queue after recovery, got %d", count)
	}
}

func TestDrainTreatsConflictAsDelivered(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	q := NewWriteQueue(fs, api, NewEventBus(), 3)

	order := queueOrder("o-1", "t-1")
	fs.Put(order)
	q.Enqueue(order)

	// Simulate a create whose acknowledgment was lost: the authority
	// already holds the record.
	doc, _ := orderToRemoteDocument(order)
	api.Create(context.Background(), models.CollectionOrders, doc)
	api.createCalls = nil

	if err := q.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	count, _ := q.Count("")
	if count != 0 {
		t.Errorf("Expected conflict to clear the entry, got %d remaining", count)
	}
}

func TestDrainFallsBackToEnqueuedSnapshot(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	q := NewWriteQueue(fs, api, NewEventBus(), 3)

	order := queueOrder("o-snap", "t-2")
	fs.Put(order)
	q.Enqueue(order)

	// The local copy is gone before the drain; the durable snapshot in
	// the entry must still carry the write.
	fs.mu.Lock()
	delete(fs.docs[models.CollectionOrders], "o-snap")
	fs.mu.Unlock()

	if err := q.ProcessQueue(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if !api.has(models.CollectionOrders, "o-snap") {
		t.Fatal("Expected snapshot payload to reach the authority")
	}

	api.mu.Lock()
	payload := api.docs[models.CollectionOrders]["o-snap"].Payload
	api.mu.Unlock()

	var sent models.Order
	if err := json.Unmarshal(payload, &sent); err != nil {
		t.Fatalf("Transmitted payload is not a valid order: %v", err)
	}
	if sent.TableID != "t-2" {
		t.Errorf("Expected snapshot table t-2, got %s", sent.TableID)
	}

	if count, _ := q.Count(""); count != 0 {
		t.Errorf("Expected entry cleared after drain, got %d remaining", count)
	}
}

func TestDrainSkipsExhaustedEntries(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	q := NewWriteQueue(fs, api, NewEventBus(), 2)

	order := queueOrder("o-1", "t-1")
	fs.Put(order)
	q.Enqueue(order)
	api.failCreateIDs["o-1"] = errors.New("rejected")

	q.ProcessQueue(context.Background())
	q.ProcessQueue(context.Background())
	attemptsAfterTwo := len(api.createCalls)

	// Third drain: the entry has exhausted its retries and is skipped.
	q.ProcessQueue(context.Background())
	if len(api.createCalls) != attemptsAfterTwo {
		t.Errorf("Expected no further attempts, got %d total", len(api.createCalls))
	}

	// The entry stays visible for diagnostics.
	count, _ := q.Count("")
	if count != 1 {
		t.Errorf("Expected exhausted entry to remain, got %d", count)
	}
}

func TestQueuedEventsPublished(t *testing.T) {
	fs := newFakeStore()
	api := newFakeAPI()
	events := NewEventBus()
	q := NewWriteQueue(fs, api, events, 3)

	var seen []EventType
	events.Subscribe(func(e Event) { seen = append(seen, e.Type) })

	order := queueOrder("o-1", "t-1")
	fs.Put(order)
	q.Enqueue(order)
	q.ProcessQueue(context.Background())

	if len(seen) != 2 || seen[0] != EventOrderQueued || seen[1] != EventOrderSynced {
		t.Errorf("Expected queued then synced events, got %v", seen)
	}
}
