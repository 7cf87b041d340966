package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains the set of connected POS terminals and fans state updates
// out to them. Terminals are read-mostly consumers: they render the table
// map and alert badges from what the hub pushes.
type Hub struct {
	// Registered clients map: TerminalID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Handshake requests swapping an anonymous id for a terminal id
	identify chan identifyRequest

	// Outbound fan-out
	broadcast chan []byte

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		identify:   make(chan identifyRequest),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

type identifyRequest struct {
	client     *Client
	terminalID string
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.TerminalID != "" {
				// If a terminal reconnects, close its old connection
				if old, ok := h.clients[client.TerminalID]; ok {
					close(old.send)
					delete(h.clients, client.TerminalID)
				}
				h.clients[client.TerminalID] = client
				log.Printf("📱 Terminal connected: %s", client.TerminalID)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if client.TerminalID != "" {
				if existing, ok := h.clients[client.TerminalID]; ok && existing == client {
					delete(h.clients, client.TerminalID)
					close(client.send)
					log.Printf("📴 Terminal disconnected: %s", client.TerminalID)
				}
			}
			h.mu.Unlock()

		case req := <-h.identify:
			h.mu.Lock()
			delete(h.clients, req.client.TerminalID)
			if old, ok := h.clients[req.terminalID]; ok && old != req.client {
				close(old.send)
			}
			req.client.TerminalID = req.terminalID
			h.clients[req.terminalID] = req.client
			log.Printf("📱 Terminal identified: %s", req.terminalID)
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full; the terminal will resync on reconnect
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to every connected terminal
func (h *Hub) Broadcast(message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling broadcast: %v", err)
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
		log.Println("⚠️ Broadcast channel full, dropping message")
	}
}

// SendToTerminal sends a message to one terminal
func (h *Hub) SendToTerminal(terminalID string, message interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[terminalID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}

	select {
	case client.send <- jsonMsg:
		return true
	default:
		// Buffer full or client dead
		return false
	}
}

// ClientCount returns the number of connected terminals
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
