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
	"github.com/xelth-com/eckposgo/internal/store"
)

// pullCollection performs one checkpointed incremental pull. Batches keep
// arriving while they come back full; a partial batch means the device has
// caught up. The checkpoint advances after every applied batch, so an
// interrupted pull resumes where it stopped instead of starting over.
func (e *Engine) pullCollection(ctx context.Context, collection string) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: time.Now()}

	batchSize := e.batchSize(collection)
	checkpoint, err := e.store.Checkpoint(collection)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err)
		return result
	}

	log.Printf("🔄 Pulling %s since %v (batch %d)", collection, checkpoint, batchSize)

	for {
		select {
		case <-ctx.Done():
			result.Success = false
			result.Errors = append(result.Errors, ctx.Err())
			e.recordCycle(collection, "pull", result)
			return result
		default:
		}

		docs, err := e.api.List(ctx, collection, checkpoint, batchSize)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err)
			e.recordCycle(collection, "pull", result)
			return result
		}

		batchMax := checkpoint
		var applyErrs []error
		for _, doc := range docs {
			if err := e.applyRemote(collection, doc); err != nil {
				log.Printf("⚠️ Failed to apply %s/%s: %v", collection, doc.ID, err)
				result.FailedIDs = append(result.FailedIDs, doc.ID)
				applyErrs = append(applyErrs, fmt.Errorf("%s: %w", doc.ID, err))
				continue
			}
			result.Pulled++
			if doc.UpdatedAt.After(batchMax) {
				batchMax = doc.UpdatedAt
			}
		}

		// A batch with apply failures ends the cycle with the checkpoint
		// where it was: advancing past a document that did not apply would
		// skip it forever, and re-issuing the same window right here would
		// spin. The minimum retry delay governs the next attempt.
		if len(applyErrs) > 0 {
			result.Success = false
			result.Errors = append(result.Errors, applyErrs...)
			e.recordCycle(collection, "pull", result)
			return result
		}

		if batchMax.After(checkpoint) {
			if err := e.store.SetCheckpoint(collection, batchMax); err != nil {
				result.Success = false
				result.Errors = append(result.Errors, err)
				e.recordCycle(collection, "pull", result)
				return result
			}
			checkpoint = batchMax
		}

		// A partial batch means there is nothing newer on the authority.
		if len(docs) < batchSize {
			break
		}
	}

	e.recordCycle(collection, "pull", result)
	return result
}

// applyRemote merges one remote document into the local store under
// last-writer-wins on updated_at. An equal or older remote copy never
// overwrites local state, and a dirty local order survives until its own
// change has been pushed or loses by timestamp.
func (e *Engine) applyRemote(collection string, doc remote.Document) error {
	incoming, err := models.DecodeDocument(collection, doc.Payload)
	if err != nil {
		return err
	}
	if incoming.GetDocumentID() == "" || incoming.GetDocumentID() != doc.ID {
		return fmt.Errorf("payload id %q does not match envelope id %q", incoming.GetDocumentID(), doc.ID)
	}

	existing, err := e.store.Get(collection, doc.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if existing != nil {
		if !incoming.GetUpdatedAt().After(existing.GetUpdatedAt()) {
			// Local copy is same or newer; the remote change lost.
			return nil
		}
		if syncable, ok := existing.(models.Syncable); ok && syncable.IsDirty() {
			// Remote is strictly newer: the local change loses under
			// last-writer-wins. Audit it before overwriting.
			e.auditLostUpdate(collection, doc.ID)
		}
	}

	return e.store.Put(incoming)
}

// auditLostUpdate records that a dirty local document was overwritten by a
// newer remote version.
func (e *Engine) auditLostUpdate(collection, id string) {
	log.Printf("⚠️ Local change to %s/%s overwritten by newer remote version", collection, id)
	failed, _ := json.Marshal([]string{id})
	_ = e.store.RecordSyncCycle(&models.SyncCycle{
		Collection: collection,
		Direction:  "pull",
		FailedIDs:  failed,
		StartedAt:  time.Now().UTC(),
		Error:      "local change lost to newer remote version",
	})
}

func (e *Engine) batchSize(collection string) int {
	if cfg, ok := e.config.Collections[collection]; ok && cfg.BatchSize > 0 {
		return cfg.BatchSize
	}
	if e.config.BatchSize > 0 {
		return e.config.BatchSize
	}
	return 50
}

func (e *Engine) recordCycle(collection, direction string, result *SyncResult) {
	cycle := &models.SyncCycle{
		Collection: collection,
		Direction:  direction,
		Pulled:     result.Pulled,
		Pushed:     result.Pushed,
		StartedAt:  result.Timestamp,
		DurationMs: time.Since(result.Timestamp).Milliseconds(),
	}
	if len(result.FailedIDs) > 0 {
		if data, err := json.Marshal(result.FailedIDs); err == nil {
			cycle.FailedIDs = data
		}
	}
	if len(result.Errors) > 0 {
		cycle.Error = joinErrors(result.Errors)
	}
	if err := e.store.RecordSyncCycle(cycle); err != nil {
		log.Printf("⚠️ Failed to record sync cycle: %v", err)
	}
}
