package sync

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/xelth-com/eckposgo/internal/config"
)

// RouteType represents the type of route to the authority
type RouteType string

const (
	RouteTypePrimary  RouteType = "primary"
	RouteTypeFallback RouteType = "fallback"
)

// RouteSwitch tracks when routes are switched
type RouteSwitch struct {
	FromRoute string    `json:"from_route"`
	ToRoute   string    `json:"to_route"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteStatus tracks the health of a route
type RouteStatus struct {
	URL          string        `json:"url"`
	IsAvailable  bool          `json:"is_available"`
	LastCheck    time.Time     `json:"last_check"`
	LastSuccess  *time.Time    `json:"last_success,omitempty"`
	LastFailure  *time.Time    `json:"last_failure,omitempty"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	AvgLatency   time.Duration `json:"avg_latency"`
	latencySum   time.Duration
	latencyCount int
}

// Monitor probes the routes to the remote authority and reports connectivity
// transitions. Reachability means the authority answers its health endpoint,
// not merely that an interface has a carrier.
type Monitor struct {
	mu sync.RWMutex

	routes        []config.SyncRouteConfig
	currentRoute  string
	routeStatuses map[string]*RouteStatus
	routeHistory  []RouteSwitch
	isOnline      bool

	checkInterval time.Duration
	running       bool
	stopChan      chan struct{}

	subscribers map[int]func(online bool)
	nextSubID   int
}

// NewMonitor creates a connectivity monitor over the configured routes.
func NewMonitor(routes []config.SyncRouteConfig) *Monitor {
	m := &Monitor{
		routes:        routes,
		routeStatuses: make(map[string]*RouteStatus),
		routeHistory:  make([]RouteSwitch, 0),
		checkInterval: 15 * time.Second,
		stopChan:      make(chan struct{}),
		subscribers:   make(map[int]func(bool)),
	}

	for _, route := range routes {
		m.routeStatuses[route.URL] = &RouteStatus{URL: route.URL}
	}

	return m
}

// Start begins health checking. The first probe runs immediately so callers
// see a real state instead of the pessimistic default.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go func() {
		m.CheckNow()
		m.healthCheckLoop()
	}()
}

// Stop stops health checking
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	close(m.stopChan)
}

// IsOnline returns whether any route is available
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isOnline
}

// CurrentRoute returns the currently selected route URL ("offline" if none)
func (m *Monitor) CurrentRoute() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentRoute == "" {
		return "offline"
	}
	return m.currentRoute
}

// RouteStatuses returns a copy of all route health records
func (m *Monitor) RouteStatuses() []RouteStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]RouteStatus, 0, len(m.routeStatuses))
	for _, route := range m.routes {
		if status, ok := m.routeStatuses[route.URL]; ok {
			statuses = append(statuses, *status)
		}
	}
	return statuses
}

// RouteHistory returns the recorded route switches
func (m *Monitor) RouteHistory() []RouteSwitch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := make([]RouteSwitch, len(m.routeHistory))
	copy(history, m.routeHistory)
	return history
}

// Subscribe registers a callback for connectivity transitions. It fires only
// on edges (offline→online, online→offline), never on repeated states.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// CheckNow probes all routes immediately and returns the resulting state.
func (m *Monitor) CheckNow() bool {
	m.mu.Lock()

	wasOnline := m.isOnline
	selected := ""
	for _, route := range m.routes {
		if m.probe(route) {
			selected = route.URL
			break
		}
	}

	if selected != "" {
		if m.currentRoute != selected {
			m.logRouteSwitch(m.currentRoute, selected, "route_available")
			m.currentRoute = selected
		}
		m.isOnline = true
	} else {
		if m.currentRoute != "offline" {
			m.logRouteSwitch(m.currentRoute, "offline", "all_routes_unavailable")
			m.currentRoute = "offline"
		}
		m.isOnline = false
	}

	nowOnline := m.isOnline
	var fns []func(bool)
	if nowOnline != wasOnline {
		fns = make([]func(bool), 0, len(m.subscribers))
		for _, fn := range m.subscribers {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(nowOnline)
	}
	return nowOnline
}

// probe tests one route against its health endpoint. Caller holds the lock.
func (m *Monitor) probe(route config.SyncRouteConfig) bool {
	status := m.routeStatuses[route.URL]
	status.LastCheck = time.Now()

	timeout := time.Duration(route.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	start := time.Now()
	resp, err := client.Get(route.URL + "/health")
	latency := time.Since(start)

	if err != nil {
		status.IsAvailable = false
		status.FailureCount++
		now := time.Now()
		status.LastFailure = &now
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.IsAvailable = false
		status.FailureCount++
		now := time.Now()
		status.LastFailure = &now
		log.Printf("Route %s returned status %d", route.URL, resp.StatusCode)
		return false
	}

	status.IsAvailable = true
	status.SuccessCount++
	status.FailureCount = 0
	now := time.Now()
	status.LastSuccess = &now

	status.latencySum += latency
	status.latencyCount++
	status.AvgLatency = status.latencySum / time.Duration(status.latencyCount)
	return true
}

func (m *Monitor) logRouteSwitch(fromRoute, toRoute, reason string) {
	if fromRoute == toRoute {
		return
	}

	m.routeHistory = append(m.routeHistory, RouteSwitch{
		FromRoute: fromRoute,
		ToRoute:   toRoute,
		Reason:    reason,
		Timestamp: time.Now(),
	})

	// Keep only last 100 switches
	if len(m.routeHistory) > 100 {
		m.routeHistory = m.routeHistory[len(m.routeHistory)-100:]
	}

	log.Printf("Route switched: %s -> %s (reason: %s)", fromRoute, toRoute, reason)
}

func (m *Monitor) healthCheckLoop() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckNow()
		case <-m.stopChan:
			return
		}
	}
}

// SetCheckInterval sets the health check interval (before Start).
func (m *Monitor) SetCheckInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkInterval = interval
}
