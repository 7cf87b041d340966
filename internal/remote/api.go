package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document is the wire form of a replicated record. Payload carries the full
// document body; ID and UpdatedAt are lifted out so the replication engine
// can advance checkpoints without decoding the body.
type Document struct {
	ID        string          `json:"id"`
	UpdatedAt time.Time       `json:"updated_at"`
	Payload   json.RawMessage `json:"payload"`
}

// API is the remote order authority seen by the replication engine. Both the
// JSON HTTP transport and the Odoo XML-RPC transport implement it.
type API interface {
	// List returns documents with updated_at strictly greater than since,
	// ordered ascending, at most limit entries.
	List(ctx context.Context, collection string, since time.Time, limit int) ([]Document, error)

	// Create inserts a document under a client-minted id. Creating an id
	// that already exists returns ErrConflict.
	Create(ctx context.Context, collection string, doc Document) error

	// Update replaces an existing document. ErrNotFound when the id is
	// unknown to the authority.
	Update(ctx context.Context, collection string, doc Document) error
}

var (
	// ErrNotFound means the authority has no document under that id.
	ErrNotFound = errors.New("remote: document not found")

	// ErrConflict means a create hit an id the authority already holds.
	ErrConflict = errors.New("remote: document already exists")
)

// NetworkError marks failures of the transport rather than of a single
// document: timeouts, refused connections, 5xx responses. The replication
// engine treats these as systemic and stops the current run.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
