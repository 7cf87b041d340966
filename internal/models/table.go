package models

import (
	"fmt"
	"time"
)

// TableStatus is the status stored for a table as last known from the remote
// authority. The status actually shown to staff is derived on top of this
// (see internal/state) and may be overridden by pending writes or alerts.
type TableStatus string

const (
	TableStatusFree     TableStatus = "free"
	TableStatusOccupied TableStatus = "occupied"
	TableStatusReserved TableStatus = "reserved"
)

// DiningTable is a read-mostly projection replicated from the remote
// authority; devices never push table documents.
type DiningTable struct {
	ID       string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Number   int         `gorm:"uniqueIndex;not null" json:"number"`
	Capacity int         `gorm:"default:2" json:"capacity"`
	Status   TableStatus `gorm:"type:varchar(20);default:free" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName specifies the table name for DiningTable model
func (DiningTable) TableName() string { return "dining_tables" }

func (t *DiningTable) GetDocumentID() string   { return t.ID }
func (t *DiningTable) GetCollection() string   { return CollectionTables }
func (t *DiningTable) GetUpdatedAt() time.Time { return t.UpdatedAt }

// Validate checks the table shape at the store boundary.
func (t *DiningTable) Validate() error {
	if t.ID == "" {
		return &ValidationError{Collection: CollectionTables, Field: "id", Reason: "must not be empty"}
	}
	if t.Number <= 0 {
		return &ValidationError{Collection: CollectionTables, Field: "number", Reason: "must be positive"}
	}
	if t.Capacity < 0 {
		return &ValidationError{Collection: CollectionTables, Field: "capacity", Reason: "must not be negative"}
	}
	switch t.Status {
	case TableStatusFree, TableStatusOccupied, TableStatusReserved:
		return nil
	default:
		return &ValidationError{Collection: CollectionTables, Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
}
