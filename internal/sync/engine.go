package sync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/xelth-com/eckposgo/internal/config"
	"github.com/xelth-com/eckposgo/internal/remote"
)

// Engine orchestrates checkpointed replication between the local store and
// the remote order authority. One worker goroutine serializes all runs;
// requests arriving while a run for the same collection is active coalesce
// into it instead of queueing behind it.
type Engine struct {
	mu sync.RWMutex

	store  LocalStore
	api    remote.API
	config *config.SyncConfig
	events *EventBus

	monitor *Monitor
	queue   QueueDrainer

	// State
	isRunning      bool
	syncInProgress bool
	lastSync       time.Time

	// inFlight coalesces re-entrant requests per collection+operation
	inFlight map[string]bool

	// lastAttempt enforces the minimum retry delay per collection
	lastAttempt map[string]time.Time

	// Channels
	stopChan chan struct{}
	syncChan chan SyncRequest
}

// NewEngine creates a replication engine. The monitor is optional; without
// one the engine always attempts to reach the authority.
func NewEngine(store LocalStore, api remote.API, cfg *config.SyncConfig, events *EventBus, monitor *Monitor) *Engine {
	return &Engine{
		store:       store,
		api:         api,
		config:      cfg,
		events:      events,
		monitor:     monitor,
		inFlight:    make(map[string]bool),
		lastAttempt: make(map[string]time.Time),
		stopChan:    make(chan struct{}),
		syncChan:    make(chan SyncRequest, 100),
	}
}

// QueueDrainer replays queued offline writes.
type QueueDrainer interface {
	ProcessQueue(ctx context.Context) error
}

// AttachQueue makes the engine drain the pending write queue on its
// periodic tick, ahead of each full sync. Call before Start.
func (e *Engine) AttachQueue(q QueueDrainer) {
	e.queue = q
}

// Start starts the replication engine
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isRunning {
		return fmt.Errorf("replication engine already running")
	}
	e.isRunning = true
	log.Println("🔄 Replication engine starting...")

	go e.syncWorker()

	if e.config.AutoSyncEnabled {
		go e.autoSyncLoop()
	}

	if e.config.SyncOnStartup {
		go func() {
			time.Sleep(2 * time.Second) // Wait for initialization
			e.RequestFullSync()
		}()
	}

	log.Println("✅ Replication engine started")
	return nil
}

// Stop stops the replication engine
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isRunning {
		return
	}

	log.Println("🛑 Stopping replication engine...")
	e.isRunning = false
	close(e.stopChan)
	log.Println("✅ Replication engine stopped")
}

// RequestFullSync requests a run over every enabled collection
func (e *Engine) RequestFullSync() {
	e.enqueue(SyncRequest{Operation: OperationFullSync, Priority: 10})
}

// RequestPull requests an incremental pull for one collection
func (e *Engine) RequestPull(collection string) {
	e.enqueue(SyncRequest{Collection: collection, Operation: OperationPull, Priority: 5})
}

// RequestPush requests a push of dirty local documents
func (e *Engine) RequestPush(collection string) {
	e.enqueue(SyncRequest{Collection: collection, Operation: OperationPush, Priority: 7})
}

func (e *Engine) enqueue(req SyncRequest) {
	key := string(req.Operation) + ":" + req.Collection

	e.mu.Lock()
	if e.inFlight[key] {
		// A run for this collection and operation is already active or
		// queued; the new request merges with it.
		e.mu.Unlock()
		return
	}
	e.inFlight[key] = true
	e.mu.Unlock()

	select {
	case e.syncChan <- req:
	default:
		log.Printf("⚠️ Sync queue full, dropping request %s %s", req.Operation, req.Collection)
		e.mu.Lock()
		delete(e.inFlight, key)
		e.mu.Unlock()
	}
}

// autoSyncLoop periodically requests a full sync
func (e *Engine) autoSyncLoop() {
	interval := time.Duration(e.config.AutoSyncInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.drainQueue()
			e.RequestFullSync()
		case <-e.stopChan:
			return
		}
	}
}

// drainQueue replays queued writes ahead of the periodic full sync, so an
// entry stranded by a create that timed out while the health route still
// answered clears without waiting for a connectivity flap.
func (e *Engine) drainQueue() {
	if e.queue == nil {
		return
	}
	if e.monitor != nil && !e.monitor.IsOnline() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := e.queue.ProcessQueue(ctx); err != nil {
		log.Printf("⚠️ Periodic queue drain failed: %v", err)
	}
}

// syncWorker processes replication requests one at a time
func (e *Engine) syncWorker() {
	for {
		select {
		case req := <-e.syncChan:
			e.processRequest(req)
		case <-e.stopChan:
			return
		}
	}
}

func (e *Engine) processRequest(req SyncRequest) {
	key := string(req.Operation) + ":" + req.Collection
	defer func() {
		e.mu.Lock()
		delete(e.inFlight, key)
		e.mu.Unlock()
	}()

	if e.monitor != nil && !e.monitor.IsOnline() {
		log.Printf("⏳ Offline, skipping %s %s", req.Operation, req.Collection)
		return
	}

	e.mu.Lock()
	e.syncInProgress = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.syncInProgress = false
		e.lastSync = time.Now()
		e.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	e.events.Publish(Event{Type: EventSyncStarted, Collection: req.Collection})

	var result *SyncResult
	switch req.Operation {
	case OperationFullSync:
		result = e.performFullSync(ctx)
	case OperationPull:
		result = e.runPull(ctx, req.Collection)
	case OperationPush:
		result = e.runPush(ctx, req.Collection)
	default:
		log.Printf("Unknown sync operation: %s", req.Operation)
		return
	}

	duration := time.Since(start)
	if result.Success {
		log.Printf("✅ Sync completed in %v: %d pulled, %d pushed", duration, result.Pulled, result.Pushed)
		e.events.Publish(Event{Type: EventSyncCompleted, Collection: req.Collection})
	} else {
		log.Printf("⚠️ Sync finished with errors in %v: %v", duration, result.Errors)
		e.events.Publish(Event{
			Type:       EventSyncFailed,
			Collection: req.Collection,
			Error:      joinErrors(result.Errors),
		})
	}
}

// performFullSync runs every enabled collection in priority order,
// push before pull so local changes race the incoming state as little
// as possible.
func (e *Engine) performFullSync(ctx context.Context) *SyncResult {
	result := &SyncResult{Success: true, Timestamp: time.Now()}

	type entry struct {
		name string
		cfg  config.CollectionSyncConfig
	}
	ordered := make([]entry, 0, len(e.config.Collections))
	for name, cfg := range e.config.Collections {
		if cfg.Enabled {
			ordered = append(ordered, entry{name, cfg})
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].cfg.Priority > ordered[j].cfg.Priority })

	for _, c := range ordered {
		direction := SyncDirection(c.cfg.Direction)

		if direction == SyncDirectionBidirectional || direction == SyncDirectionPushOnly {
			r := e.runPush(ctx, c.name)
			result.Pushed += r.Pushed
			result.Errors = append(result.Errors, r.Errors...)
			if !r.Success {
				result.Success = false
				if hasNetworkError(r.Errors) {
					// The link is down; the remaining collections would
					// fail the same way.
					return result
				}
			}
		}

		if direction == SyncDirectionBidirectional || direction == SyncDirectionPullOnly {
			r := e.runPull(ctx, c.name)
			result.Pulled += r.Pulled
			result.Errors = append(result.Errors, r.Errors...)
			if !r.Success {
				result.Success = false
				if hasNetworkError(r.Errors) {
					return result
				}
			}
		}
	}

	result.Duration = time.Since(result.Timestamp)
	return result
}

// runPull executes one pull honoring the per-collection retry delay.
func (e *Engine) runPull(ctx context.Context, collection string) *SyncResult {
	e.mu.Lock()
	minDelay := time.Duration(e.config.MinRetryDelay) * time.Second
	if last, ok := e.lastAttempt["pull:"+collection]; ok && time.Since(last) < minDelay {
		e.mu.Unlock()
		return &SyncResult{Success: true, Timestamp: time.Now()}
	}
	e.lastAttempt["pull:"+collection] = time.Now()
	e.mu.Unlock()

	return e.pullCollection(ctx, collection)
}

func (e *Engine) runPush(ctx context.Context, collection string) *SyncResult {
	// Only orders originate locally for now
	if collection != "" && collection != "orders" {
		return &SyncResult{Success: true, Timestamp: time.Now()}
	}
	return e.pushOrders(ctx)
}

// ResetCollection rewinds the checkpoint and pulls the collection from the
// epoch. Used when the authority's history was rebuilt.
func (e *Engine) ResetCollection(collection string) error {
	if err := e.store.ResetCheckpoint(collection); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.lastAttempt, "pull:"+collection)
	e.mu.Unlock()
	e.RequestPull(collection)
	return nil
}

// Status returns a snapshot for the status endpoint
func (e *Engine) Status() EngineStatus {
	e.mu.RLock()
	status := EngineStatus{
		Running:        e.isRunning,
		SyncInProgress: e.syncInProgress,
		LastSync:       e.lastSync,
	}
	e.mu.RUnlock()

	if count, err := e.store.PendingWriteCount(""); err == nil {
		status.PendingWrites = count
	}
	if cycles, err := e.store.LastSyncCycles(10); err == nil {
		status.RecentCycles = cycles
	}
	if e.monitor != nil {
		status.Online = e.monitor.IsOnline()
		status.CurrentRoute = e.monitor.CurrentRoute()
	}
	return status
}

// Events exposes the engine's event bus for UI subscribers
func (e *Engine) Events() *EventBus {
	return e.events
}

func hasNetworkError(errs []error) bool {
	for _, err := range errs {
		if remote.IsNetwork(err) {
			return true
		}
	}
	return false
}

func joinErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	msg := errs[0].Error()
	for _, err := range errs[1:] {
		msg += "; " + err.Error()
	}
	return msg
}
