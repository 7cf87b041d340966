package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
)

// pushOrders transmits locally-changed orders. Update first, and when the
// authority has never seen the id, fall back to create; that keeps the push
// path symmetric with the queue's create path for offline-born orders.
// Per-document failures are recorded and skipped; a transport failure stops
// the run since every remaining document would fail the same way.
func (e *Engine) pushOrders(ctx context.Context) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: time.Now()}

	orders, err := e.store.DirtyOrders(0)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err)
		return result
	}
	if len(orders) == 0 {
		return result
	}

	log.Printf("🔄 Pushing %d dirty orders", len(orders))

	for i := range orders {
		order := &orders[i]

		select {
		case <-ctx.Done():
			result.Success = false
			result.Errors = append(result.Errors, ctx.Err())
			e.recordCycle(models.CollectionOrders, "push", result)
			return result
		default:
		}

		doc, err := orderToRemoteDocument(order)
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, order.ID)
			result.Errors = append(result.Errors, err)
			continue
		}

		if err := e.transmit(ctx, doc); err != nil {
			if remote.IsNetwork(err) {
				result.Success = false
				result.Errors = append(result.Errors, err)
				e.recordCycle(models.CollectionOrders, "push", result)
				return result
			}
			log.Printf("⚠️ Push rejected for order %s: %v", order.ID, err)
			result.FailedIDs = append(result.FailedIDs, order.ID)
			result.Errors = append(result.Errors, err)
			continue
		}

		order.MarkClean()
		if err := e.store.Put(order); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Pushed++
		e.events.Publish(Event{
			Type:       EventOrderSynced,
			Collection: models.CollectionOrders,
			DocumentID: order.ID,
			TableID:    order.TableID,
		})
	}

	e.recordCycle(models.CollectionOrders, "push", result)
	return result
}

// transmit sends one document, resolving the create/update ambiguity the
// authority cannot resolve for us.
func (e *Engine) transmit(ctx context.Context, doc remote.Document) error {
	err := e.api.Update(ctx, models.CollectionOrders, doc)
	if errors.Is(err, remote.ErrNotFound) {
		err = e.api.Create(ctx, models.CollectionOrders, doc)
		if errors.Is(err, remote.ErrConflict) {
			// Raced with our own earlier create; the record is there.
			return nil
		}
	}
	return err
}

// orderToRemoteDocument strips local bookkeeping and wraps the order for the
// wire. Dirty and DeletedAt are json:"-", so a plain marshal drops them.
func orderToRemoteDocument(order *models.Order) (remote.Document, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return remote.Document{}, fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}
	return remote.Document{
		ID:        order.ID,
		UpdatedAt: order.UpdatedAt,
		Payload:   payload,
	}, nil
}
