package realtime

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xelth-com/eckposgo/internal/config"
)

// ChannelState describes the lifecycle of the event channel connection
type ChannelState string

const (
	StateDisconnected ChannelState = "disconnected"
	StateConnecting   ChannelState = "connecting"
	StateConnected    ChannelState = "connected"
	StateReconnecting ChannelState = "reconnecting"
	StateFailed       ChannelState = "failed"
)

// EventKind identifies a venue event pushed over the channel
type EventKind string

const (
	EventBillRequested      EventKind = "bill_requested"
	EventServiceRequested   EventKind = "service_requested"
	EventTableStatusChanged EventKind = "table_status_changed"
)

// VenueEvent is one message received from the event channel
type VenueEvent struct {
	Kind      EventKind       `json:"kind"`
	TableID   string          `json:"table_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Alert is a standing request raised by a venue event. Alerts are keyed by
// table and kind: a second bill request for the same table renews the
// existing alert instead of stacking a duplicate.
type Alert struct {
	Kind      EventKind `json:"kind"`
	TableID   string    `json:"table_id"`
	RaisedAt  time.Time `json:"raised_at"`
	RenewedAt time.Time `json:"renewed_at"`
	Count     int       `json:"count"`
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Channel maintains the websocket subscription to the venue event stream.
// The connection recovers from drops with capped exponential backoff; after
// the configured number of consecutive failures it parks in StateFailed
// until Reconnect is called.
type Channel struct {
	cfg config.RealtimeChannelConfig

	mu        sync.RWMutex
	state     ChannelState
	attempts  int
	conn      *websocket.Conn
	alerts    map[string]*Alert // key: kind|table_id
	listeners map[int]func(VenueEvent)
	nextSubID int

	stopChan  chan struct{}
	resetChan chan struct{}
	running   bool
}

// NewChannel creates an event channel client (not yet connected).
func NewChannel(cfg config.RealtimeChannelConfig) *Channel {
	return &Channel{
		cfg:       cfg,
		state:     StateDisconnected,
		alerts:    make(map[string]*Alert),
		listeners: make(map[int]func(VenueEvent)),
		stopChan:  make(chan struct{}),
		resetChan: make(chan struct{}, 1),
	}
}

// Start launches the connection loop. Without a configured URL the channel
// stays disconnected and the rest of the system runs without live events.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.running || c.cfg.URL == "" {
		c.mu.Unlock()
		if c.cfg.URL == "" {
			log.Println("⚠️ No realtime URL configured, event channel disabled")
		}
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.connectLoop()
}

// Stop closes the channel permanently.
func (c *Channel) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	conn := c.conn
	c.mu.Unlock()

	close(c.stopChan)
	if conn != nil {
		conn.Close()
	}
}

// State returns the current connection state.
func (c *Channel) State() ChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Attempts returns the consecutive failed reconnect attempts.
func (c *Channel) Attempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// Reconnect resets the failure counter and wakes the connection loop. This
// is the manual escape hatch out of StateFailed.
func (c *Channel) Reconnect() {
	c.mu.Lock()
	c.attempts = 0
	if c.state == StateFailed {
		c.state = StateReconnecting
	}
	c.mu.Unlock()

	select {
	case c.resetChan <- struct{}{}:
	default:
	}
}

// OnEvent registers a listener for venue events; returns an unsubscribe
// function.
func (c *Channel) OnEvent(fn func(VenueEvent)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Alerts returns the standing alerts, oldest first.
func (c *Channel) Alerts() []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()

	alerts := make([]Alert, 0, len(c.alerts))
	for _, a := range c.alerts {
		alerts = append(alerts, *a)
	}
	for i := 1; i < len(alerts); i++ {
		for j := i; j > 0 && alerts[j].RaisedAt.Before(alerts[j-1].RaisedAt); j-- {
			alerts[j], alerts[j-1] = alerts[j-1], alerts[j]
		}
	}
	return alerts
}

// HasAlert reports whether a table has a standing alert of the given kind.
func (c *Channel) HasAlert(kind EventKind, tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.alerts[alertKey(kind, tableID)]
	return ok
}

// TableAlerts returns the standing alerts for one table.
func (c *Channel) TableAlerts(tableID string) []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var alerts []Alert
	for _, a := range c.alerts {
		if a.TableID == tableID {
			alerts = append(alerts, *a)
		}
	}
	return alerts
}

// Resolve clears a standing alert after staff handled it.
func (c *Channel) Resolve(kind EventKind, tableID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := alertKey(kind, tableID)
	if _, ok := c.alerts[key]; !ok {
		return false
	}
	delete(c.alerts, key)
	log.Printf("✅ Alert resolved: %s for table %s", kind, tableID)
	return true
}

// HandleEvent applies one venue event to the alert state and fans it out to
// listeners. Exposed so an HTTP fallback can inject events when the socket
// is down.
func (c *Channel) HandleEvent(event VenueEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	switch event.Kind {
	case EventBillRequested, EventServiceRequested:
		c.raiseAlert(event)
	case EventTableStatusChanged:
		// Supersedes whatever the guest asked for at that table; the
		// replication pull owns the stored table state itself.
		c.clearTableAlerts(event.TableID)
	default:
		log.Printf("⚠️ Unknown venue event kind: %s", event.Kind)
		return
	}

	c.mu.RLock()
	fns := make([]func(VenueEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (c *Channel) raiseAlert(event VenueEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := alertKey(event.Kind, event.TableID)
	if existing, ok := c.alerts[key]; ok {
		existing.RenewedAt = event.Timestamp
		existing.Count++
		return
	}
	c.alerts[key] = &Alert{
		Kind:      event.Kind,
		TableID:   event.TableID,
		RaisedAt:  event.Timestamp,
		RenewedAt: event.Timestamp,
		Count:     1,
	}
	log.Printf("🔔 Alert raised: %s for table %s", event.Kind, event.TableID)
}

func (c *Channel) clearTableAlerts(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, alert := range c.alerts {
		if alert.TableID == tableID {
			delete(c.alerts, key)
		}
	}
}

// connectLoop dials, reads until the connection drops, then backs off and
// retries. attempts resets on every successful connection.
func (c *Channel) connectLoop() {
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		c.mu.Lock()
		if c.cfg.MaxReconnectAttempts > 0 && c.attempts >= c.cfg.MaxReconnectAttempts {
			c.state = StateFailed
			c.mu.Unlock()
			log.Printf("🛑 Event channel failed after %d attempts, waiting for manual reconnect", c.attempts)

			select {
			case <-c.resetChan:
				continue
			case <-c.stopChan:
				return
			}
		}
		c.state = StateConnecting
		if c.attempts > 0 {
			c.state = StateReconnecting
		}
		attempt := c.attempts
		c.mu.Unlock()

		if attempt > 0 {
			delay := backoffDelay(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, attempt)
			log.Printf("🔄 Reconnecting event channel in %v (attempt %d)", delay, attempt+1)
			select {
			case <-time.After(delay):
			case <-c.resetChan:
			case <-c.stopChan:
				return
			}
		}

		if err := c.runConnection(); err != nil {
			c.mu.Lock()
			c.attempts++
			c.state = StateReconnecting
			c.mu.Unlock()
			log.Printf("⚠️ Event channel dropped: %v", err)
		}

		select {
		case <-c.stopChan:
			return
		default:
		}
	}
}

// runConnection performs one dial-subscribe-read cycle. It returns when the
// connection drops.
func (c *Channel) runConnection() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	// Subscribe to the venue topic before anything else
	sub := map[string]string{"type": "subscribe", "topic": c.cfg.Topic}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.mu.Unlock()
	log.Printf("✅ Event channel connected: %s (topic %s)", c.cfg.URL, c.cfg.Topic)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingStop := make(chan struct{})
	go c.pingLoop(conn, pingStop)

	defer func() {
		close(pingStop)
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		if c.state == StateConnected {
			c.state = StateReconnecting
		}
		c.mu.Unlock()
	}()

	for {
		var event VenueEvent
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}
		c.HandleEvent(event)
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	interval := c.cfg.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		case <-c.stopChan:
			return
		}
	}
}

// backoffDelay doubles the base per attempt up to the cap.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func alertKey(kind EventKind, tableID string) string {
	return string(kind) + "|" + tableID
}
