package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/remote"
)

// SubmitResultKind is the tagged outcome of a submit
type SubmitResultKind string

const (
	ResultAccepted SubmitResultKind = "accepted" // stored locally and acknowledged by the authority
	ResultQueued   SubmitResultKind = "queued"   // stored locally, transmission pending
	ResultRejected SubmitResultKind = "rejected" // validation failed, nothing stored
)

// SubmitResult reports what happened to a submitted order
type SubmitResult struct {
	Kind   SubmitResultKind `json:"result"`
	Order  *models.Order    `json:"order,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// SubmitRequest is the input for a new order
type SubmitRequest struct {
	TableID string             `json:"table_id"`
	Items   []models.OrderItem `json:"items"`
	Note    string             `json:"note,omitempty"`
}

// Store is the slice of the local store the order service uses.
type Store interface {
	Put(doc models.Document) error
	Delete(collection, id string) error
	GetOrder(id string) (*models.Order, error)
	OrdersByTable(tableID string) ([]models.Order, error)
}

// Queue is where orders go when the authority cannot be reached.
type Queue interface {
	Enqueue(order *models.Order) error
}

// Pusher triggers a background push of dirty documents.
type Pusher interface {
	RequestPush(collection string)
}

// Connectivity reports whether the authority is reachable.
type Connectivity interface {
	IsOnline() bool
}

// Service owns the order lifecycle: submission with the local-first
// write path, and workflow transitions.
type Service struct {
	store   Store
	api     remote.API
	queue   Queue
	monitor Connectivity
	pusher  Pusher
	taxRate float64
}

// NewService wires the order service. monitor and pusher may be nil in tests.
func NewService(store Store, api remote.API, queue Queue, monitor Connectivity, pusher Pusher, taxRate float64) *Service {
	return &Service{
		store:   store,
		api:     api,
		queue:   queue,
		monitor: monitor,
		pusher:  pusher,
		taxRate: taxRate,
	}
}

// Submit takes a new order local-first: it lands in the store before any
// network attempt, so a crash or disconnect can never lose it. The id is
// minted here (UUID), making the remote create idempotent across retries.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	order := &models.Order{
		ID:      uuid.New().String(),
		TableID: req.TableID,
		Status:  models.OrderStatusOpen,
		Note:    req.Note,
	}
	if err := order.SetItems(req.Items); err != nil {
		return &SubmitResult{Kind: ResultRejected, Reason: err.Error()}, nil
	}
	order.TaxCents = int64(math.Round(float64(order.SubtotalCents) * s.taxRate))
	order.TotalCents = order.SubtotalCents + order.TaxCents
	order.CreatedAt = time.Now().UTC()
	order.MarkDirty()

	if err := order.Validate(); err != nil {
		return &SubmitResult{Kind: ResultRejected, Reason: err.Error()}, nil
	}

	if err := s.store.Put(order); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return &SubmitResult{Kind: ResultRejected, Reason: ve.Error()}, nil
		}
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	if s.monitor != nil && !s.monitor.IsOnline() {
		return s.queueOrder(order)
	}

	doc, err := orderDocument(order)
	if err != nil {
		return nil, err
	}
	if err := s.api.Create(ctx, models.CollectionOrders, doc); err != nil {
		if errors.Is(err, remote.ErrConflict) {
			// Our id is already there: an earlier attempt landed.
			return s.acceptOrder(order)
		}
		if remote.IsNetwork(err) {
			log.Printf("⚠️ Authority unreachable, queueing order %s: %v", order.ID, err)
			return s.queueOrder(order)
		}
		// The authority refused the order outright. Roll the local copy
		// back so the rejection leaves no trace.
		if delErr := s.store.Delete(models.CollectionOrders, order.ID); delErr != nil {
			log.Printf("⚠️ Failed to roll back rejected order %s: %v", order.ID, delErr)
		}
		return &SubmitResult{Kind: ResultRejected, Reason: err.Error()}, nil
	}

	return s.acceptOrder(order)
}

func (s *Service) acceptOrder(order *models.Order) (*SubmitResult, error) {
	order.MarkClean()
	if err := s.store.Put(order); err != nil {
		return nil, err
	}
	log.Printf("✅ Order %s accepted (table %s, %d cents)", order.ID, order.TableID, order.TotalCents)
	return &SubmitResult{Kind: ResultAccepted, Order: order}, nil
}

func (s *Service) queueOrder(order *models.Order) (*SubmitResult, error) {
	if err := s.queue.Enqueue(order); err != nil {
		return nil, fmt.Errorf("failed to queue order: %w", err)
	}
	return &SubmitResult{Kind: ResultQueued, Order: order}, nil
}

// Transition moves an order through its workflow and schedules the change
// for push. Illegal transitions are refused without touching the order.
func (s *Service) Transition(orderID string, to models.OrderStatus) (*models.Order, error) {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, to) {
		return nil, &models.ValidationError{
			Collection: models.CollectionOrders,
			Field:      "status",
			Reason:     fmt.Sprintf("cannot move from %s to %s", order.Status, to),
		}
	}

	order.Status = to
	order.MarkDirty()
	if err := s.store.Put(order); err != nil {
		return nil, err
	}

	if s.pusher != nil {
		s.pusher.RequestPush(models.CollectionOrders)
	}
	return order, nil
}

// ForTable returns the open orders of a table.
func (s *Service) ForTable(tableID string) ([]models.Order, error) {
	return s.store.OrdersByTable(tableID)
}

// Get loads one order.
func (s *Service) Get(orderID string) (*models.Order, error) {
	return s.store.GetOrder(orderID)
}

// orderDocument wraps an order for the wire; Dirty and DeletedAt carry
// json:"-" and drop out of the payload.
func orderDocument(order *models.Order) (remote.Document, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return remote.Document{}, fmt.Errorf("failed to encode order %s: %w", order.ID, err)
	}
	return remote.Document{ID: order.ID, UpdatedAt: order.UpdatedAt, Payload: payload}, nil
}
