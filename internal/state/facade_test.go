package state

import (
	"testing"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/realtime"
	"github.com/xelth-com/eckposgo/internal/store"
)

type fakeTables struct {
	tables  []models.DiningTable
	orders  map[string][]models.Order
	pending map[string]int64
}

func (f *fakeTables) ListTables() ([]models.DiningTable, error) { return f.tables, nil }

func (f *fakeTables) GetTable(id string) (*models.DiningTable, error) {
	for i := range f.tables {
		if f.tables[i].ID == id {
			return &f.tables[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeTables) OrdersByTable(tableID string) ([]models.Order, error) {
	return f.orders[tableID], nil
}

func (f *fakeTables) PendingWriteCount(tableID string) (int64, error) {
	if tableID == "" {
		var total int64
		for _, n := range f.pending {
			total += n
		}
		return total, nil
	}
	return f.pending[tableID], nil
}

type fakeAlerts struct {
	alerts []realtime.Alert
}

func (f *fakeAlerts) Alerts() []realtime.Alert { return f.alerts }

func (f *fakeAlerts) TableAlerts(tableID string) []realtime.Alert {
	var result []realtime.Alert
	for _, a := range f.alerts {
		if a.TableID == tableID {
			result = append(result, a)
		}
	}
	return result
}

func fixtures() (*fakeTables, *fakeAlerts) {
	tables := &fakeTables{
		tables: []models.DiningTable{
			{ID: "t-1", Number: 1, Status: models.TableStatusFree},
			{ID: "t-2", Number: 2, Status: models.TableStatusOccupied},
			{ID: "t-3", Number: 3, Status: models.TableStatusReserved},
		},
		orders:  make(map[string][]models.Order),
		pending: make(map[string]int64),
	}
	return tables, &fakeAlerts{}
}

func TestEffectiveStatusDefaultsToStored(t *testing.T) {
	tables, alerts := fixtures()
	f := New(tables, alerts)

	view, err := f.TableStatus("t-2")
	if err != nil {
		t.Fatalf("TableStatus failed: %v", err)
	}
	if view.Effective != EffectiveStatus(models.TableStatusOccupied) {
		t.Errorf("Expected stored status, got %s", view.Effective)
	}
}

func TestPendingSyncOverridesEverything(t *testing.T) {
	tables, alerts := fixtures()
	tables.pending["t-2"] = 2
	alerts.alerts = []realtime.Alert{{Kind: realtime.EventBillRequested, TableID: "t-2"}}
	f := New(tables, alerts)

	view, _ := f.TableStatus("t-2")
	if view.Effective != StatusPendingSync {
		t.Errorf("Expected pending_sync to win, got %s", view.Effective)
	}
	if view.PendingWrites != 2 {
		t.Errorf("Expected 2 pending writes, got %d", view.PendingWrites)
	}
}

func TestAlertOverridesStoredStatus(t *testing.T) {
	tables, alerts := fixtures()
	alerts.alerts = []realtime.Alert{
		{Kind: realtime.EventBillRequested, TableID: "t-2"},
		{Kind: realtime.EventServiceRequested, TableID: "t-3"},
	}
	f := New(tables, alerts)

	view, _ := f.TableStatus("t-2")
	if view.Effective != StatusBillRequested {
		t.Errorf("Expected bill_requested, got %s", view.Effective)
	}

	view, _ = f.TableStatus("t-3")
	if view.Effective != StatusServiceRequested {
		t.Errorf("Expected service_requested, got %s", view.Effective)
	}
}

func TestBillRequestWinsOverServiceRequest(t *testing.T) {
	tables, alerts := fixtures()
	alerts.alerts = []realtime.Alert{
		{Kind: realtime.EventServiceRequested, TableID: "t-1"},
		{Kind: realtime.EventBillRequested, TableID: "t-1"},
	}
	f := New(tables, alerts)

	view, _ := f.TableStatus("t-1")
	if view.Effective != StatusBillRequested {
		t.Errorf("Expected bill request to take precedence, got %s", view.Effective)
	}
}

func TestSnapshotCoversAllTables(t *testing.T) {
	tables, alerts := fixtures()
	tables.orders["t-2"] = []models.Order{{ID: "o-1", TableID: "t-2", Status: models.OrderStatusOpen}}
	f := New(tables, alerts)

	views, err := f.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("Expected 3 views, got %d", len(views))
	}
	if views[1].OpenOrders != 1 {
		t.Errorf("Expected 1 open order on t-2, got %d", views[1].OpenOrders)
	}
}

func TestFreshReadsAfterSourceChange(t *testing.T) {
	tables, alerts := fixtures()
	f := New(tables, alerts)

	view, _ := f.TableStatus("t-1")
	if view.Effective != EffectiveStatus(models.TableStatusFree) {
		t.Fatalf("Expected free, got %s", view.Effective)
	}

	// The facade holds no cache: a source change shows up on the next read.
	tables.pending["t-1"] = 1
	view, _ = f.TableStatus("t-1")
	if view.Effective != StatusPendingSync {
		t.Errorf("Expected pending_sync after source change, got %s", view.Effective)
	}
}

func TestSubscribeAndInvalidate(t *testing.T) {
	tables, alerts := fixtures()
	f := New(tables, alerts)

	var updates []Update
	unsubscribe := f.Subscribe(func(u Update) { updates = append(updates, u) })

	f.Invalidate("t-1", "order_put")
	if len(updates) != 1 || updates[0].TableID != "t-1" {
		t.Fatalf("Expected one update for t-1, got %v", updates)
	}

	unsubscribe()
	f.Invalidate("", "sync_completed")
	if len(updates) != 1 {
		t.Error("Expected no updates after unsubscribe")
	}
}

func TestPendingSyncCountAggregates(t *testing.T) {
	tables, alerts := fixtures()
	tables.pending["t-1"] = 1
	tables.pending["t-2"] = 2
	f := New(tables, alerts)

	count, err := f.PendingSyncCount()
	if err != nil {
		t.Fatalf("PendingSyncCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3, got %d", count)
	}
}
