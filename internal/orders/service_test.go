package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
	"github.com/xelth-com/eckposgo/internal/store"
)

type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*models.Order)}
}

func (f *fakeStore) Put(doc models.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	order, ok := doc.(*models.Order)
	if !ok {
		return errors.New("unexpected document type")
	}
	f.mu.Lock()
	clone := *order
	f.orders[order.ID] = &clone
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Delete(collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeStore) GetOrder(id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[id]; ok {
		clone := *order
		return &clone, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) OrdersByTable(tableID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Order
	for _, order := range f.orders {
		if order.TableID == tableID && !order.IsFinalized() {
			result = append(result, *order)
		}
	}
	return result, nil
}

type fakeAPI struct {
	createErr error
	created   []string
}

func (f *fakeAPI) List(ctx context.Context, collection string, since time.Time, limit int) ([]remote.Document, error) {
	return nil, nil
}

func (f *fakeAPI) Create(ctx context.Context, collection string, doc remote.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc.ID)
	return nil
}

func (f *fakeAPI) Update(ctx context.Context, collection string, doc remote.Document) error {
	return remote.ErrNotFound
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) Enqueue(order *models.Order) error {
	f.enqueued = append(f.enqueued, order.ID)
	return nil
}

type fakeConnectivity struct{ online bool }

func (f *fakeConnectivity) IsOnline() bool { return f.online }

type fakePusher struct{ pushes []string }

func (f *fakePusher) RequestPush(collection string) { f.pushes = append(f.pushes, collection) }

func submitRequest() SubmitRequest {
	return SubmitRequest{
		TableID: "t-1",
		Items: []models.OrderItem{
			{MenuItemID: "m-1", Name: "Schnitzel", Quantity: 1, PriceCents: 1450},
		},
	}
}

func TestSubmitAcceptedWhenOnline(t *testing.T) {
	fs := newFakeStore()
	api := &fakeAPI{}
	q := &fakeQueue{}
	svc := NewService(fs, api, q, &fakeConnectivity{online: true}, nil, 0.19)

	result, err := svc.Submit(context.Background(), submitRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Kind != ResultAccepted {
		t.Fatalf("Expected accepted, got %s (%s)", result.Kind, result.Reason)
	}
	if result.Order.ID == "" {
		t.Error("Expected a minted order id")
	}
	if result.Order.TaxCents != 276 { // round(1450 * 0.19)
		t.Errorf("Expected 276 tax cents, got %d", result.Order.TaxCents)
	}
	if result.Order.TotalCents != 1726 {
		t.Errorf("Expected 1726 total cents, got %d", result.Order.TotalCents)
	}

	stored, err := fs.GetOrder(result.Order.ID)
	if err != nil {
		t.Fatalf("Expected order in store: %v", err)
	}
	if stored.Dirty {
		t.Error("Expected accepted order to be clean")
	}
	if len(q.enqueued) != 0 {
		t.Error("Expected no queue entry for accepted order")
	}
}

func TestSubmitQueuedWhenOffline(t *testing.T) {
	fs := newFakeStore()
	api := &fakeAPI{}
	q := &fakeQueue{}
	svc := NewService(fs, api, q, &fakeConnectivity{online: false}, nil, 0.19)

	result, err := svc.Submit(context.Background(), submitRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Kind != ResultQueued {
		t.Fatalf("Expected queued, got %s", result.Kind)
	}

	// Local-first: the order is durable before any transmission.
	stored, err := fs.GetOrder(result.Order.ID)
	if err != nil {
		t.Fatalf("Expected order in store: %v", err)
	}
	if !stored.Dirty {
		t.Error("Expected queued order to stay dirty")
	}
	if len(q.enqueued) != 1 || q.enqueued[0] != result.Order.ID {
		t.Errorf("Expected order in queue, got %v", q.enqueued)
	}
	if len(api.created) != 0 {
		t.Error("Expected no network attempt while offline")
	}
}

func TestSubmitQueuedOnNetworkFailure(t *testing.T) {
	fs := newFakeStore()
	api := &fakeAPI{createErr: &remote.NetworkError{Op: "create", Err: errors.New("timeout")}}
	q := &fakeQueue{}
	svc := NewService(fs, api, q, &fakeConnectivity{online: true}, nil, 0.19)

	result, err := svc.Submit(context.Background(), submitRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Kind != ResultQueued {
		t.Fatalf("Expected queued after network failure, got %s", result.Kind)
	}
	if len(q.enqueued) != 1 {
		t.Errorf("Expected 1 queue entry, got %d", len(q.enqueued))
	}
}

func TestSubmitRejectedLeavesNoTrace(t *testing.T) {
	fs := newFakeStore()
	q := &fakeQueue{}
	svc := NewService(fs, &fakeAPI{}, q, &fakeConnectivity{online: true}, nil, 0.19)

	result, err := svc.Submit(context.Background(), SubmitRequest{TableID: "t-1", Items: nil})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Kind != ResultRejected {
		t.Fatalf("Expected rejected, got %s", result.Kind)
	}
	if result.Reason == "" {
		t.Error("Expected a rejection reason")
	}
	if len(fs.orders) != 0 {
		t.Error("Expected no stored order after rejection")
	}
	if len(q.enqueued) != 0 {
		t.Error("Expected no queue entry after rejection")
	}
}

func TestSubmitAuthorityRejectionRollsBack(t *testing.T) {
	fs := newFakeStore()
	api := &fakeAPI{createErr: errors.New("remote create orders failed: status 400: unknown table")}
	svc := NewService(fs, api, &fakeQueue{}, &fakeConnectivity{online: true}, nil, 0.19)

	result, err := svc.Submit(context.Background(), submitRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Kind != ResultRejected {
		t.Fatalf("Expected rejected, got %s", result.Kind)
	}
	if len(fs.orders) != 0 {
		t.Error("Expected local rollback after authority rejection")
	}
}

func TestSubmitConflictCountsAsAccepted(t *testing.T) {
	fs := newFakeStore()
	api := &fakeAPI{createErr: remote.ErrConflict}
	svc := NewService(fs, api, &fakeQueue{}, &fakeConnectivity{online: true}, nil, 0.19)

	result, err := svc.Submit(context.Background(), submitRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.Kind != ResultAccepted {
		t.Fatalf("Expected conflict to count as accepted, got %s", result.Kind)
	}
}

func TestTransitionEnforcesWorkflow(t *testing.T) {
	fs := newFakeStore()
	pusher := &fakePusher{}
	svc := NewService(fs, &fakeAPI{}, &fakeQueue{}, &fakeConnectivity{online: true}, pusher, 0.19)

	result, _ := svc.Submit(context.Background(), submitRequest())
	id := result.Order.ID

	order, err := svc.Transition(id, models.OrderStatusInProgress)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if order.Status != models.OrderStatusInProgress {
		t.Errorf("Expected in_progress, got %s", order.Status)
	}
	if !order.Dirty {
		t.Error("Expected transitioned order to be dirty")
	}
	if len(pusher.pushes) != 1 {
		t.Errorf("Expected a push request, got %d", len(pusher.pushes))
	}

	// open -> paid skips the workflow and must be refused.
	if _, err := svc.Transition(id, models.OrderStatusPaid); err == nil {
		t.Error("Expected illegal transition to be refused")
	}

	stored, _ := fs.GetOrder(id)
	if stored.Status != models.OrderStatusInProgress {
		t.Errorf("Expected refused transition to leave status unchanged, got %s", stored.Status)
	}
}
