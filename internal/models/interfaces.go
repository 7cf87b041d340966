package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names used by the local store and the replication engine.
const (
	CollectionOrders         = "orders"
	CollectionTables         = "tables"
	CollectionMenuItems      = "menu_items"
	CollectionMenuCategories = "menu_categories"
	CollectionPendingWrites  = "pending_writes"
	CollectionCheckpoints    = "checkpoints"
)

// Document is implemented by every record the local store manages.
type Document interface {
	GetDocumentID() string
	GetCollection() string
	GetUpdatedAt() time.Time
	Validate() error
}

// Syncable is implemented by documents that can originate locally and
// therefore carry a dirty marker for the push path.
type Syncable interface {
	Document
	IsDirty() bool
	MarkDirty()
	MarkClean()
}

// ValidationError names the field that failed schema validation.
// A rejected document must not alter stored state.
type ValidationError struct {
	Collection string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s.%s: %s", e.Collection, e.Field, e.Reason)
}

// ChangeOp identifies the kind of store mutation in a change notification.
type ChangeOp string

const (
	ChangePut    ChangeOp = "put"
	ChangeDelete ChangeOp = "delete"
)

// Change is delivered to store subscribers after a committed write.
type Change struct {
	Collection string   `json:"collection"`
	Op         ChangeOp `json:"op"`
	DocumentID string   `json:"document_id"`
}

// NewDocument returns an empty document for a replicated collection.
func NewDocument(collection string) (Document, error) {
	switch collection {
	case CollectionOrders:
		return &Order{}, nil
	case CollectionTables:
		return &DiningTable{}, nil
	case CollectionMenuItems:
		return &MenuItem{}, nil
	case CollectionMenuCategories:
		return &MenuCategory{}, nil
	default:
		return nil, fmt.Errorf("unknown collection: %s", collection)
	}
}

// DecodeDocument unmarshals a remote payload into the concrete document type
// for a collection. Local-only fields are left at their zero values, so a
// decoded document is always clean.
func DecodeDocument(collection string, data []byte) (Document, error) {
	doc, err := NewDocument(collection)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", collection, err)
	}
	return doc, nil
}
