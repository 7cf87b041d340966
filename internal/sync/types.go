package sync

import (
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
)

// SyncDirection defines the direction of replication for a collection
type SyncDirection string

const (
	SyncDirectionBidirectional SyncDirection = "bidirectional"
	SyncDirectionPullOnly      SyncDirection = "pull_only"
	SyncDirectionPushOnly      SyncDirection = "push_only"
)

// SyncOperation identifies the kind of work a request asks for
type SyncOperation string

const (
	OperationPull     SyncOperation = "pull"
	OperationPush     SyncOperation = "push"
	OperationFullSync SyncOperation = "full_sync"
)

// SyncRequest represents one queued replication request
type SyncRequest struct {
	Collection string
	Operation  SyncOperation
	Priority   int
}

// SyncResult represents the outcome of one replication run
type SyncResult struct {
	Success   bool
	Pulled    int
	Pushed    int
	FailedIDs []string
	Errors    []error
	Duration  time.Duration
	Timestamp time.Time
}

// EngineStatus is the snapshot reported on the status endpoint
type EngineStatus struct {
	Running        bool               `json:"running"`
	SyncInProgress bool               `json:"sync_in_progress"`
	LastSync       time.Time          `json:"last_sync"`
	PendingWrites  int64              `json:"pending_writes"`
	Online         bool               `json:"online"`
	CurrentRoute   string             `json:"current_route"`
	RecentCycles   []models.SyncCycle `json:"recent_cycles,omitempty"`
}

// LocalStore is the slice of the store the replication machinery uses.
// Narrowed to an interface so engine and queue tests can run against fakes
// without a database.
type LocalStore interface {
	Put(doc models.Document) error
	Get(collection, id string) (models.Document, error)
	GetOrder(id string) (*models.Order, error)
	DirtyOrders(limit int) ([]models.Order, error)

	Checkpoint(collection string) (time.Time, error)
	SetCheckpoint(collection string, at time.Time) error
	ResetCheckpoint(collection string) error

	EnqueuePendingWrite(pw *models.PendingWrite) error
	NextPendingWrites(limit int) ([]models.PendingWrite, error)
	DeletePendingWrite(localID string) error
	MarkPendingWriteFailed(localID string, attemptErr error) error
	PendingWriteCount(tableID string) (int64, error)

	RecordSyncCycle(cycle *models.SyncCycle) error
	LastSyncCycles(limit int) ([]models.SyncCycle, error)
}
