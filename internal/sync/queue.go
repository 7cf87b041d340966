package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
)

// WriteQueue holds orders accepted while the authority was unreachable and
// replays them in FIFO order once connectivity returns. Entries are durable
// rows; a power cut between enqueue and drain loses nothing.
type WriteQueue struct {
	store  LocalStore
	api    remote.API
	events *EventBus

	maxRetries int

	mu       sync.Mutex
	draining bool
}

// NewWriteQueue creates a queue over the durable pending_writes table.
func NewWriteQueue(localStore LocalStore, api remote.API, events *EventBus, maxRetries int) *WriteQueue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &WriteQueue{
		store:      localStore,
		api:        api,
		events:     events,
		maxRetries: maxRetries,
	}
}

// Enqueue appends an order to the queue. The entry id equals the order id,
// so retrying a submit cannot double-book the queue.
func (q *WriteQueue) Enqueue(order *models.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}

	pw := &models.PendingWrite{
		LocalID:    order.ID,
		Collection: models.CollectionOrders,
		TableID:    order.TableID,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.store.EnqueuePendingWrite(pw); err != nil {
		return err
	}

	log.Printf("📥 Order %s queued for transmission (table %s)", order.ID, order.TableID)
	q.events.Publish(Event{
		Type:       EventOrderQueued,
		Collection: models.CollectionOrders,
		DocumentID: order.ID,
		TableID:    order.TableID,
	})
	return nil
}

// Count returns the queue depth, optionally scoped to a table.
func (q *WriteQueue) Count(tableID string) (int64, error) {
	return q.store.PendingWriteCount(tableID)
}

// Entries returns the queue contents in FIFO order for diagnostics.
func (q *WriteQueue) Entries() ([]models.PendingWrite, error) {
	return q.store.NextPendingWrites(0)
}

// ProcessQueue drains the queue in FIFO order. A second call while a drain
// is running returns immediately; the running drain already covers the new
// entries because it re-reads the table.
//
// Failures are classified: a transport failure is systemic and stops the
// drain (every later entry would fail identically), while a rejection of a
// single entry is recorded on that entry and the drain moves on.
func (q *WriteQueue) ProcessQueue(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	writes, err := q.store.NextPendingWrites(0)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	log.Printf("🔄 Draining %d pending writes", len(writes))

	for _, pw := range writes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if pw.AttemptCount >= q.maxRetries {
			// Stuck entry: left in the table for operator inspection,
			// skipped so it cannot stall the entries behind it.
			continue
		}

		if err := q.transmitEntry(ctx, pw); err != nil {
			if markErr := q.store.MarkPendingWriteFailed(pw.LocalID, err); markErr != nil {
				log.Printf("⚠️ Failed to record attempt on %s: %v", pw.LocalID, markErr)
			}

			if remote.IsNetwork(err) {
				log.Printf("⚠️ Queue drain stopped, authority unreachable: %v", err)
				return err
			}

			log.Printf("⚠️ Entry %s rejected by authority: %v", pw.LocalID, err)
			q.events.Publish(Event{
				Type:       EventSyncFailed,
				Collection: pw.Collection,
				DocumentID: pw.LocalID,
				TableID:    pw.TableID,
				Error:      err.Error(),
			})
			continue
		}

		if err := q.store.DeletePendingWrite(pw.LocalID); err != nil {
			return err
		}
		q.markOrderSynced(pw.LocalID)

		log.Printf("✅ Queued order %s transmitted", pw.LocalID)
		q.events.Publish(Event{
			Type:       EventOrderSynced,
			Collection: pw.Collection,
			DocumentID: pw.LocalID,
			TableID:    pw.TableID,
		})
	}

	return nil
}

// transmitEntry replays one queued create. A conflict means an earlier
// attempt landed before its acknowledgment was lost; the entry is done.
func (q *WriteQueue) transmitEntry(ctx context.Context, pw models.PendingWrite) error {
	doc := remote.Document{
		ID:      pw.LocalID,
		Payload: json.RawMessage(pw.Payload),
	}
	if order, err := q.store.GetOrder(pw.LocalID); err == nil {
		// Prefer the current state of the order over the enqueued
		// snapshot; status may have moved while offline.
		if current, err := orderToRemoteDocument(order); err == nil {
			doc = current
		}
	}

	err := q.api.Create(ctx, pw.Collection, doc)
	if errors.Is(err, remote.ErrConflict) {
		return nil
	}
	return err
}

func (q *WriteQueue) markOrderSynced(orderID string) {
	order, err := q.store.GetOrder(orderID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("⚠️ Failed to load order %s after drain: %v", orderID, err)
		}
		return
	}
	order.MarkClean()
	if err := q.store.Put(order); err != nil {
		log.Printf("⚠️ Failed to mark order %s clean: %v", orderID, err)
	}
}
