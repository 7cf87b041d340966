package sync

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
)

// fakeStore is an in-memory LocalStore for engine and queue tests.
type fakeStore struct {
	mu          sync.Mutex
	docs        map[string]map[string]models.Document // collection -> id -> doc
	checkpoints map[string]time.Time
	pending     []models.PendingWrite
	cycles      []models.SyncCycle
	nextSeq     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:        make(map[string]map[string]models.Document),
		checkpoints: make(map[string]time.Time),
	}
}

func (f *fakeStore) Put(doc models.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	coll := doc.GetCollection()
	if f.docs[coll] == nil {
		f.docs[coll] = make(map[string]models.Document)
	}
	f.docs[coll][doc.GetDocumentID()] = doc
	return nil
}

func (f *fakeStore) Get(collection, id string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[collection][id]; ok {
		return doc, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetOrder(id string) (*models.Order, error) {
	doc, err := f.Get(models.CollectionOrders, id)
	if err != nil {
		return nil, err
	}
	order := doc.(*models.Order)
	clone := *order
	return &clone, nil
}

func (f *fakeStore) DirtyOrders(limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, doc := range f.docs[models.CollectionOrders] {
		order := doc.(*models.Order)
		if order.Dirty {
			orders = append(orders, *order)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].UpdatedAt.Before(orders[j].UpdatedAt) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (f *fakeStore) Checkpoint(collection string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkpoints[collection], nil
}

func (f *fakeStore) SetCheckpoint(collection string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if at.After(f.checkpoints[collection]) {
		f.checkpoints[collection] = at
	}
	return nil
}

func (f *fakeStore) ResetCheckpoint(collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.checkpoints, collection)
	return nil
}

func (f *fakeStore) EnqueuePendingWrite(pw *models.PendingWrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.pending {
		if existing.LocalID == pw.LocalID {
			return nil
		}
	}
	f.nextSeq++
	pw.Seq = f.nextSeq
	if pw.EnqueuedAt.IsZero() {
		pw.EnqueuedAt = time.Now().UTC()
	}
	f.pending = append(f.pending, *pw)
	return nil
}

func (f *fakeStore) NextPendingWrites(limit int) ([]models.PendingWrite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writes := make([]models.PendingWrite, len(f.pending))
	copy(writes, f.pending)
	if limit > 0 && len(writes) > limit {
		writes = writes[:limit]
	}
	return writes, nil
}

func (f *fakeStore) DeletePendingWrite(localID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, pw := range f.pending {
		if pw.LocalID == localID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) MarkPendingWriteFailed(localID string, attemptErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pending {
		if f.pending[i].LocalID == localID {
			f.pending[i].AttemptCount++
			f.pending[i].LastError = attemptErr.Error()
			now := time.Now().UTC()
			f.pending[i].LastAttemptAt = &now
		}
	}
	return nil
}

func (f *fakeStore) PendingWriteCount(tableID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tableID == "" {
		return int64(len(f.pending)), nil
	}
	var count int64
	for _, pw := range f.pending {
		if pw.TableID == tableID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) RecordSyncCycle(cycle *models.SyncCycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, *cycle)
	return nil
}

func (f *fakeStore) LastSyncCycles(limit int) ([]models.SyncCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cycles := make([]models.SyncCycle, len(f.cycles))
	copy(cycles, f.cycles)
	return cycles, nil
}

// fakeAPI is a scriptable remote authority.
type fakeAPI struct {
	mu sync.Mutex

	// remote state: collection -> id -> doc
	docs map[string]map[string]remote.Document

	// listBatches overrides List responses when set (consumed in order)
	listBatches [][]remote.Document

	// failures
	failCreateIDs map[string]error // per-id create error
	networkDown   bool

	createCalls []string
	updateCalls []string
	listCalls   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		docs:          make(map[string]map[string]remote.Document),
		failCreateIDs: make(map[string]error),
	}
}

func (f *fakeAPI) List(ctx context.Context, collection string, since time.Time, limit int) ([]remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.networkDown {
		return nil, &remote.NetworkError{Op: "list", Err: context.DeadlineExceeded}
	}
	if len(f.listBatches) > 0 {
		batch := f.listBatches[0]
		f.listBatches = f.listBatches[1:]
		return batch, nil
	}

	var docs []remote.Document
	for _, doc := range f.docs[collection] {
		if doc.UpdatedAt.After(since) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UpdatedAt.Before(docs[j].UpdatedAt) })
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *fakeAPI) Create(ctx context.Context, collection string, doc remote.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, doc.ID)
	if f.networkDown {
		return &remote.NetworkError{Op: "create", Err: context.DeadlineExceeded}
	}
	if err, ok := f.failCreateIDs[doc.ID]; ok {
		return err
	}
	if _, exists := f.docs[collection][doc.ID]; exists {
		return remote.ErrConflict
	}
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]remote.Document)
	}
	f.docs[collection][doc.ID] = doc
	return nil
}

func (f *fakeAPI) Update(ctx context.Context, collection string, doc remote.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, doc.ID)
	if f.networkDown {
		return &remote.NetworkError{Op: "update", Err: context.DeadlineExceeded}
	}
	if _, exists := f.docs[collection][doc.ID]; !exists {
		return remote.ErrNotFound
	}
	f.docs[collection][doc.ID] = doc
	return nil
}

func (f *fakeAPI) setNetworkDown(down bool) {
	f.mu.Lock()
	f.networkDown = down
	f.mu.Unlock()
}

func (f *fakeAPI) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAPI) has(collection, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[collection][id]
	return ok
}

// remoteOrderDoc builds a wire document for an order payload.
func remoteOrderDoc(id, tableID string, updatedAt time.Time) remote.Document {
	order := &models.Order{
		ID:      id,
		TableID: tableID,
		Status:  models.OrderStatusOpen,
	}
	order.SetItems([]models.OrderItem{{MenuItemID: "m-1", Name: "Soup", Quantity: 1, PriceCents: 500}})
	order.TotalCents = order.SubtotalCents
	order.UpdatedAt = updatedAt
	payload, _ := json.Marshal(order)
	return remote.Document{ID: id, UpdatedAt: updatedAt, Payload: payload}
}
