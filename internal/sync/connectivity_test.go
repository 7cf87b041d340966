package sync

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/xelth-com/eckposgo/internal/config"
)

func healthServer(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMonitorDetectsOnlineAndOffline(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := healthServer(t, &healthy)

	m := NewMonitor([]config.SyncRouteConfig{
		{URL: server.URL, Type: "primary", Timeout: 2, Priority: 1},
	})

	if !m.CheckNow() {
		t.Fatal("Expected monitor to report online")
	}
	if m.CurrentRoute() != server.URL {
		t.Errorf("Expected current route %s, got %s", server.URL, m.CurrentRoute())
	}

	healthy.Store(false)
	if m.CheckNow() {
		t.Fatal("Expected monitor to report offline")
	}
	if m.CurrentRoute() != "offline" {
		t.Errorf("Expected offline route, got %s", m.CurrentRoute())
	}
}

func TestMonitorPrefersHigherPriorityRoute(t *testing.T) {
	var primaryHealthy, fallbackHealthy atomic.Bool
	primaryHealthy.Store(false)
	fallbackHealthy.Store(true)
	primary := healthServer(t, &primaryHealthy)
	fallback := healthServer(t, &fallbackHealthy)

	m := NewMonitor([]config.SyncRouteConfig{
		{URL: primary.URL, Type: "primary", Timeout: 2, Priority: 1},
		{URL: fallback.URL, Type: "fallback", Timeout: 2, Priority: 2},
	})

	m.CheckNow()
	if m.CurrentRoute() != fallback.URL {
		t.Errorf("Expected fallback route while primary is down, got %s", m.CurrentRoute())
	}

	// Primary comes back: the next probe returns to it.
	primaryHealthy.Store(true)
	m.CheckNow()
	if m.CurrentRoute() != primary.URL {
		t.Errorf("Expected primary route after recovery, got %s", m.CurrentRoute())
	}

	history := m.RouteHistory()
	if len(history) < 2 {
		t.Fatalf("Expected route switches to be recorded, got %d", len(history))
	}
	last := history[len(history)-1]
	if last.ToRoute != primary.URL {
		t.Errorf("Expected last switch to primary, got %+v", last)
	}
}

func TestMonitorSubscribersFireOnEdgesOnly(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(false)
	server := healthServer(t, &healthy)

	m := NewMonitor([]config.SyncRouteConfig{
		{URL: server.URL, Type: "primary", Timeout: 2, Priority: 1},
	})

	var transitions []bool
	unsubscribe := m.Subscribe(func(online bool) {
		transitions = append(transitions, online)
	})

	m.CheckNow() // offline -> offline: no edge
	healthy.Store(true)
	m.CheckNow() // offline -> online
	m.CheckNow() // online -> online: no edge
	healthy.Store(false)
	m.CheckNow() // online -> offline

	want := []bool{true, false}
	if len(transitions) != len(want) {
		t.Fatalf("Expected %d transitions, got %d (%v)", len(want), len(transitions), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d: expected %v, got %v", i, want[i], transitions[i])
		}
	}

	unsubscribe()
	healthy.Store(true)
	m.CheckNow()
	if len(transitions) != 2 {
		t.Error("Expected no notifications after unsubscribe")
	}
}

func TestMonitorTracksRouteStats(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := healthServer(t, &healthy)

	m := NewMonitor([]config.SyncRouteConfig{
		{URL: server.URL, Type: "primary", Timeout: 2, Priority: 1},
	})

	m.CheckNow()
	m.CheckNow()

	statuses := m.RouteStatuses()
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 route status, got %d", len(statuses))
	}
	if statuses[0].SuccessCount != 2 {
		t.Errorf("Expected 2 successes, got %d", statuses[0].SuccessCount)
	}
	if !statuses[0].IsAvailable {
		t.Error("Expected route to be available")
	}
	if statuses[0].LastSuccess == nil {
		t.Error("Expected last success to be recorded")
	}
}
