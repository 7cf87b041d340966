package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xelth-com/eckposgo/internal/database"
	"github.com/xelth-com/eckposgo/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a document does not exist in the local store.
var ErrNotFound = errors.New("document not found")

// Store is the single read/write surface over the local database. All writes
// go through Put/Delete so that validation and change notification cannot be
// bypassed by callers holding a raw DB handle.
type Store struct {
	db *database.DB

	mu          sync.RWMutex
	subscribers map[int]func(models.Change)
	nextSubID   int
}

// New creates a store over an established database connection.
func New(db *database.DB) *Store {
	return &Store{
		db:          db,
		subscribers: make(map[int]func(models.Change)),
	}
}

// Migrate creates or updates the schema for every managed collection.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&models.Order{},
		&models.DiningTable{},
		&models.MenuItem{},
		&models.MenuCategory{},
		&models.PendingWrite{},
		&models.SyncCheckpoint{},
		&models.SyncCycle{},
	)
}

// DB exposes the underlying GORM handle for read-only reporting queries.
func (s *Store) DB() *gorm.DB {
	return s.db.DB
}

// Put validates and upserts a document. The write and the subscriber
// notification happen in that order; subscribers observe committed state.
func (s *Store) Put(doc models.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	if err := s.db.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Save(doc).Error
	}); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", doc.GetCollection(), doc.GetDocumentID(), err)
	}

	s.notify(models.Change{
		Collection: doc.GetCollection(),
		Op:         models.ChangePut,
		DocumentID: doc.GetDocumentID(),
	})
	return nil
}

// Get loads one document from a replicated collection by id.
func (s *Store) Get(collection, id string) (models.Document, error) {
	doc, err := models.NewDocument(collection)
	if err != nil {
		return nil, err
	}
	if err := s.db.DB.First(doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes a document. Orders are soft-deleted (gorm.DeletedAt);
// other collections are removed outright.
func (s *Store) Delete(collection, id string) error {
	doc, err := models.NewDocument(collection)
	if err != nil {
		return err
	}
	result := s.db.DB.Delete(doc, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.notify(models.Change{Collection: collection, Op: models.ChangeDelete, DocumentID: id})
	return nil
}

// Subscribe registers a change callback and returns an unsubscribe function.
// Callbacks run synchronously after the commit; keep them short.
func (s *Store) Subscribe(fn func(models.Change)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(change models.Change) {
	s.mu.RLock()
	fns := make([]func(models.Change), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

// ============ TYPED QUERIES ============

// GetOrder loads one order by id.
func (s *Store) GetOrder(id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.DB.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// OrdersByTable returns the non-finalized orders for a table, newest first.
func (s *Store) OrdersByTable(tableID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.DB.
		Where("table_id = ? AND status NOT IN ?", tableID,
			[]models.OrderStatus{models.OrderStatusPaid, models.OrderStatusCancelled}).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// DirtyOrders returns locally-changed orders awaiting push, oldest change first.
func (s *Store) DirtyOrders(limit int) ([]models.Order, error) {
	var orders []models.Order
	q := s.db.DB.Where("dirty = ?", true).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&orders).Error
	return orders, err
}

// ListTables returns all dining tables ordered by number.
func (s *Store) ListTables() ([]models.DiningTable, error) {
	var tables []models.DiningTable
	err := s.db.DB.Order("number ASC").Find(&tables).Error
	return tables, err
}

// GetTable loads one dining table by id.
func (s *Store) GetTable(id string) (*models.DiningTable, error) {
	var table models.DiningTable
	if err := s.db.DB.First(&table, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &table, nil
}

// ListMenu returns active menu items grouped under their categories.
func (s *Store) ListMenu() ([]models.MenuCategory, []models.MenuItem, error) {
	var categories []models.MenuCategory
	if err := s.db.DB.Order("sequence ASC").Find(&categories).Error; err != nil {
		return nil, nil, err
	}
	var items []models.MenuItem
	if err := s.db.DB.Where("active = ?", true).Order("name ASC").Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return categories, items, nil
}

// ============ CHECKPOINTS ============

// Checkpoint returns the pull watermark for a collection (zero time if none).
func (s *Store) Checkpoint(collection string) (time.Time, error) {
	var cp models.SyncCheckpoint
	err := s.db.DB.First(&cp, "collection = ?", collection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return cp.LastSyncedAt, nil
}

// SetCheckpoint advances the pull watermark. It never moves backwards except
// through ResetCheckpoint.
func (s *Store) SetCheckpoint(collection string, at time.Time) error {
	current, err := s.Checkpoint(collection)
	if err != nil {
		return err
	}
	if !at.After(current) {
		return nil
	}
	cp := models.SyncCheckpoint{Collection: collection, LastSyncedAt: at, UpdatedAt: time.Now().UTC()}
	return s.db.DB.Save(&cp).Error
}

// ResetCheckpoint rewinds a collection to the epoch, forcing a full resync.
func (s *Store) ResetCheckpoint(collection string) error {
	return s.db.DB.Delete(&models.SyncCheckpoint{}, "collection = ?", collection).Error
}

// ============ PENDING WRITE QUEUE ============

// EnqueuePendingWrite appends a durable entry to the pending write queue.
// Re-enqueueing the same local id is a no-op, which keeps a retried submit
// from duplicating queue entries.
func (s *Store) EnqueuePendingWrite(pw *models.PendingWrite) error {
	if err := pw.Validate(); err != nil {
		return err
	}
	if pw.EnqueuedAt.IsZero() {
		pw.EnqueuedAt = time.Now().UTC()
	}
	err := s.db.DB.Create(pw).Error
	if err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err)) {
		return nil
	}
	return err
}

// NextPendingWrites returns up to limit queue entries in FIFO order.
func (s *Store) NextPendingWrites(limit int) ([]models.PendingWrite, error) {
	var writes []models.PendingWrite
	q := s.db.DB.Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&writes).Error
	return writes, err
}

// DeletePendingWrite removes a successfully transmitted entry.
func (s *Store) DeletePendingWrite(localID string) error {
	return s.db.DB.Delete(&models.PendingWrite{}, "local_id = ?", localID).Error
}

// MarkPendingWriteFailed records a failed transmission attempt on an entry.
func (s *Store) MarkPendingWriteFailed(localID string, attemptErr error) error {
	now := time.Now().UTC()
	return s.db.DB.Model(&models.PendingWrite{}).
		Where("local_id = ?", localID).
		Updates(map[string]interface{}{
			"attempt_count":   gorm.Expr("attempt_count + 1"),
			"last_error":      attemptErr.Error(),
			"last_attempt_at": now,
		}).Error
}

// PendingWriteCount returns the queue depth, optionally scoped to a table.
func (s *Store) PendingWriteCount(tableID string) (int64, error) {
	var count int64
	q := s.db.DB.Model(&models.PendingWrite{})
	if tableID != "" {
		q = q.Where("table_id = ?", tableID)
	}
	err := q.Count(&count).Error
	return count, err
}

// ============ SYNC CYCLES ============

// RecordSyncCycle persists the outcome of one replication run.
func (s *Store) RecordSyncCycle(cycle *models.SyncCycle) error {
	return s.db.DB.Create(cycle).Error
}

// LastSyncCycles returns the most recent replication runs for diagnostics.
func (s *Store) LastSyncCycles(limit int) ([]models.SyncCycle, error) {
	var cycles []models.SyncCycle
	if limit <= 0 {
		limit = 20
	}
	err := s.db.DB.Order("id DESC").Limit(limit).Find(&cycles).Error
	return cycles, err
}

func isUniqueViolation(err error) bool {
	// pgx reports unique violations with SQLSTATE 23505 in the message
	return err != nil && strings.Contains(err.Error(), "23505")
}
