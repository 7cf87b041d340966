package models

import (
	"time"

	"gorm.io/datatypes"
)

// PendingWrite is one durable entry of the pending write queue: an order
// creation that could not reach the remote authority synchronously. The
// LocalID equals the client-minted order id and stays stable across retries,
// which is what makes a replayed create idempotent at the server.
type PendingWrite struct {
	LocalID string `gorm:"primaryKey;column:local_id;type:varchar(64)" json:"local_id"`

	// Seq preserves enqueue order for FIFO draining.
	Seq int64 `gorm:"autoIncrement;uniqueIndex" json:"seq"`

	Collection string         `gorm:"type:varchar(50);not null" json:"collection"`
	TableID    string         `gorm:"type:varchar(64);index" json:"table_id"`
	Payload    datatypes.JSON `gorm:"not null" json:"payload"`

	EnqueuedAt    time.Time  `gorm:"not null" json:"enqueued_at"`
	AttemptCount  int        `gorm:"default:0" json:"attempt_count"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// TableName specifies the table name for PendingWrite model
func (PendingWrite) TableName() string { return "pending_writes" }

func (p *PendingWrite) GetDocumentID() string   { return p.LocalID }
func (p *PendingWrite) GetCollection() string   { return CollectionPendingWrites }
func (p *PendingWrite) GetUpdatedAt() time.Time { return p.EnqueuedAt }

func (p *PendingWrite) Validate() error {
	if p.LocalID == "" {
		return &ValidationError{Collection: CollectionPendingWrites, Field: "local_id", Reason: "must not be empty"}
	}
	if p.Collection == "" {
		return &ValidationError{Collection: CollectionPendingWrites, Field: "collection", Reason: "must not be empty"}
	}
	if len(p.Payload) == 0 {
		return &ValidationError{Collection: CollectionPendingWrites, Field: "payload", Reason: "must not be empty"}
	}
	return nil
}

// SyncCheckpoint stores the per-collection pull watermark: the updated_at of
// the most recent remote document already applied locally. It only moves
// forward; a full resync is the single operation allowed to rewind it.
type SyncCheckpoint struct {
	Collection   string    `gorm:"primaryKey;type:varchar(50)" json:"collection"`
	LastSyncedAt time.Time `json:"last_synced_at"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for SyncCheckpoint model
func (SyncCheckpoint) TableName() string { return "sync_checkpoints" }

func (c *SyncCheckpoint) GetDocumentID() string   { return c.Collection }
func (c *SyncCheckpoint) GetCollection() string   { return CollectionCheckpoints }
func (c *SyncCheckpoint) GetUpdatedAt() time.Time { return c.UpdatedAt }

func (c *SyncCheckpoint) Validate() error {
	if c.Collection == "" {
		return &ValidationError{Collection: CollectionCheckpoints, Field: "collection", Reason: "must not be empty"}
	}
	return nil
}

// SyncCycle records one replication run for the status endpoint and for
// auditing lost-update suspicions under last-writer-wins.
type SyncCycle struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Collection string         `gorm:"type:varchar(50);not null;index" json:"collection"`
	Direction  string         `gorm:"type:varchar(10);not null" json:"direction"` // pull | push
	Pulled     int            `gorm:"default:0" json:"pulled"`
	Pushed     int            `gorm:"default:0" json:"pushed"`
	FailedIDs  datatypes.JSON `json:"failed_ids,omitempty"`
	StartedAt  time.Time      `gorm:"not null" json:"started_at"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for SyncCycle model
func (SyncCycle) TableName() string { return "sync_cycles" }
