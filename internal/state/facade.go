package state

import (
	"sync"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/realtime"
)

// EffectiveStatus is what the floor display shows for a table. It overlays
// transient local knowledge on the stored, replicated status.
type EffectiveStatus string

const (
	StatusPendingSync      EffectiveStatus = "pending_sync"
	StatusBillRequested    EffectiveStatus = "bill_requested"
	StatusServiceRequested EffectiveStatus = "service_requested"
)

// TableView is the reconciled picture of one table
type TableView struct {
	Table         models.DiningTable `json:"table"`
	Effective     EffectiveStatus    `json:"effective_status"`
	OpenOrders    int                `json:"open_orders"`
	PendingWrites int64              `json:"pending_writes"`
	Alerts        []realtime.Alert   `json:"alerts,omitempty"`
}

// Update tells subscribers which table changed ("" means everything).
type Update struct {
	TableID string `json:"table_id,omitempty"`
	Reason  string `json:"reason"`
}

// TableSource provides tables and their orders from the local store.
type TableSource interface {
	ListTables() ([]models.DiningTable, error)
	GetTable(id string) (*models.DiningTable, error)
	OrdersByTable(tableID string) ([]models.Order, error)
	PendingWriteCount(tableID string) (int64, error)
}

// AlertSource provides the standing venue alerts.
type AlertSource interface {
	Alerts() []realtime.Alert
	TableAlerts(tableID string) []realtime.Alert
}

// Facade computes the reconciled state the UI reads. It never stores derived
// state: every read recomputes from the sources, so the answer is current by
// construction. Change notification exists only to tell the UI when to
// re-read.
type Facade struct {
	tables TableSource
	alerts AlertSource

	mu          sync.RWMutex
	subscribers map[int]func(Update)
	nextSubID   int
}

// New creates a facade over the given sources. alerts may be nil when the
// event channel is disabled.
func New(tables TableSource, alerts AlertSource) *Facade {
	return &Facade{
		tables:      tables,
		alerts:      alerts,
		subscribers: make(map[int]func(Update)),
	}
}

// Snapshot returns the reconciled view of every table.
func (f *Facade) Snapshot() ([]TableView, error) {
	tables, err := f.tables.ListTables()
	if err != nil {
		return nil, err
	}

	views := make([]TableView, 0, len(tables))
	for _, table := range tables {
		view, err := f.buildView(table)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// TableStatus returns the reconciled view of one table.
func (f *Facade) TableStatus(tableID string) (*TableView, error) {
	table, err := f.tables.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	view, err := f.buildView(*table)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// PendingSyncCount returns how many accepted orders still await transmission.
func (f *Facade) PendingSyncCount() (int64, error) {
	return f.tables.PendingWriteCount("")
}

// buildView overlays local knowledge on the stored table status. Precedence:
// untransmitted local orders first (the kitchen copy differs from the
// authority's), then standing guest alerts, then the replicated status.
func (f *Facade) buildView(table models.DiningTable) (TableView, error) {
	view := TableView{
		Table:     table,
		Effective: EffectiveStatus(table.Status),
	}

	orders, err := f.tables.OrdersByTable(table.ID)
	if err != nil {
		return view, err
	}
	view.OpenOrders = len(orders)

	pending, err := f.tables.PendingWriteCount(table.ID)
	if err != nil {
		return view, err
	}
	view.PendingWrites = pending

	if f.alerts != nil {
		view.Alerts = f.alerts.TableAlerts(table.ID)
	}

	switch {
	case pending > 0:
		view.Effective = StatusPendingSync
	case hasAlert(view.Alerts, realtime.EventBillRequested):
		view.Effective = StatusBillRequested
	case hasAlert(view.Alerts, realtime.EventServiceRequested):
		view.Effective = StatusServiceRequested
	}

	return view, nil
}

// Subscribe registers for change hints; returns an unsubscribe function.
func (f *Facade) Subscribe(fn func(Update)) func() {
	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subscribers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}

// Invalidate tells subscribers that a table (or everything, with an empty
// id) needs re-reading. The store, the replication engine, and the event
// channel all feed this.
func (f *Facade) Invalidate(tableID, reason string) {
	f.mu.RLock()
	fns := make([]func(Update), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	update := Update{TableID: tableID, Reason: reason}
	for _, fn := range fns {
		fn(update)
	}
}

func hasAlert(alerts []realtime.Alert, kind realtime.EventKind) bool {
	for _, a := range alerts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
