package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus defines the workflow states of an order
type OrderStatus string

const (
	OrderStatusOpen       OrderStatus = "open"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the allowed status progressions. Orders are created
// once and only move forward through the kitchen/cashier workflow; paid and
// cancelled are terminal (orders are retired soft, never deleted).
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusOpen:       {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusPaid, OrderStatusCancelled},
}

// CanTransition reports whether from -> to is an allowed order progression.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderItem is one line of an order. Modifiers are a flat list of named
// options (e.g. "no onions", "extra shot") rather than a free-form map.
type OrderItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	PriceCents int64    `json:"price_cents"` // unit price
	Modifiers  []string `json:"modifiers,omitempty"`
	Note       string   `json:"note,omitempty"`
}

// Order represents a guest order for a table. The ID is minted by the client
// (UUID) so that a retried create after a lost acknowledgment is idempotent.
// Money fields are integer cents.
type Order struct {
	ID      string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TableID string      `gorm:"type:varchar(64);not null;index" json:"table_id"`
	Status  OrderStatus `gorm:"type:varchar(20);default:open;index" json:"status"`

	Items datatypes.JSON `gorm:"not null" json:"items"`

	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
	Note          string `gorm:"type:text" json:"note,omitempty"`

	// Dirty marks a locally-originated change not yet acknowledged by the
	// remote authority. Local bookkeeping only, stripped before transmission.
	Dirty bool `gorm:"index" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:false" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string { return "orders" }

func (o *Order) GetDocumentID() string    { return o.ID }
func (o *Order) GetCollection() string    { return CollectionOrders }
func (o *Order) GetUpdatedAt() time.Time  { return o.UpdatedAt }
func (o *Order) IsDirty() bool            { return o.Dirty }
func (o *Order) MarkDirty()               { o.Dirty = true; o.UpdatedAt = time.Now().UTC() }
func (o *Order) MarkClean()               { o.Dirty = false }

// OrderItems decodes the JSON items column.
func (o *Order) OrderItems() ([]OrderItem, error) {
	if len(o.Items) == 0 {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal(o.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	return items, nil
}

// SetItems encodes the line items into the JSON column and recomputes the
// subtotal. Tax and total stay caller-owned (the tax rate is configuration).
func (o *Order) SetItems(items []OrderItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	o.Items = datatypes.JSON(data)
	var subtotal int64
	for _, it := range items {
		subtotal += int64(it.Quantity) * it.PriceCents
	}
	o.SubtotalCents = subtotal
	return nil
}

// Validate checks the order shape at the store boundary.
func (o *Order) Validate() error {
	if o.ID == "" {
		return &ValidationError{Collection: CollectionOrders, Field: "id", Reason: "must not be empty"}
	}
	if o.TableID == "" {
		return &ValidationError{Collection: CollectionOrders, Field: "table_id", Reason: "must not be empty"}
	}
	switch o.Status {
	case OrderStatusOpen, OrderStatusInProgress, OrderStatusReady,
		OrderStatusDelivered, OrderStatusPaid, OrderStatusCancelled:
	default:
		return &ValidationError{Collection: CollectionOrders, Field: "status", Reason: fmt.Sprintf("unknown status %q", o.Status)}
	}
	items, err := o.OrderItems()
	if err != nil {
		return &ValidationError{Collection: CollectionOrders, Field: "items", Reason: "not a valid item list"}
	}
	if len(items) == 0 {
		return &ValidationError{Collection: CollectionOrders, Field: "items", Reason: "must contain at least one line"}
	}
	for i, it := range items {
		if it.MenuItemID == "" {
			return &ValidationError{Collection: CollectionOrders, Field: fmt.Sprintf("items[%d].menu_item_id", i), Reason: "must not be empty"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Collection: CollectionOrders, Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
		if it.PriceCents < 0 {
			return &ValidationError{Collection: CollectionOrders, Field: fmt.Sprintf("items[%d].price_cents", i), Reason: "must not be negative"}
		}
	}
	if o.SubtotalCents < 0 || o.TaxCents < 0 || o.TotalCents < 0 {
		return &ValidationError{Collection: CollectionOrders, Field: "total_cents", Reason: "money fields must not be negative"}
	}
	if o.TotalCents != o.SubtotalCents+o.TaxCents {
		return &ValidationError{Collection: CollectionOrders, Field: "total_cents", Reason: "must equal subtotal plus tax"}
	}
	return nil
}

// IsFinalized reports whether the order has reached a terminal state.
func (o *Order) IsFinalized() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusCancelled
}
