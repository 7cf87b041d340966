package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/xelth-com/eckposgo/internal/buildinfo"
	"github.com/xelth-com/eckposgo/internal/orders"
	"github.com/xelth-com/eckposgo/internal/realtime"
	"github.com/xelth-com/eckposgo/internal/state"
	"github.com/xelth-com/eckposgo/internal/store"
	syncengine "github.com/xelth-com/eckposgo/internal/sync"
	"github.com/xelth-com/eckposgo/internal/websocket"
)

// Deps bundles everything the HTTP layer serves from.
type Deps struct {
	Store    *store.Store
	Orders   *orders.Service
	Facade   *state.Facade
	Engine   *syncengine.Engine
	Queue    *syncengine.WriteQueue
	Monitor  *syncengine.Monitor
	Channel  *realtime.Channel
	Hub      *websocket.Hub
	Instance string
}

// Router wraps the mux router and the service dependencies
type Router struct {
	*mux.Router
	deps Deps
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Deps) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		deps:   deps,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	// Order routes
	api.HandleFunc("/orders", r.createOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", r.getOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/status", r.transitionOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/receipt", r.getReceipt).Methods("GET")

	// Table routes
	api.HandleFunc("/tables", r.listTables).Methods("GET")
	api.HandleFunc("/tables/{id}/status", r.getTableStatus).Methods("GET")
	api.HandleFunc("/tables/{id}/orders", r.listTableOrders).Methods("GET")

	// Menu routes
	api.HandleFunc("/menu", r.getMenu).Methods("GET")

	// Sync control routes
	api.HandleFunc("/sync/status", r.getSyncStatus).Methods("GET")
	api.HandleFunc("/sync/trigger", r.triggerSync).Methods("POST")
	api.HandleFunc("/sync/pending", r.listPendingWrites).Methods("GET")
	api.HandleFunc("/sync/history", r.getSyncHistory).Methods("GET")
	api.HandleFunc("/sync/reset/{collection}", r.resetCollection).Methods("POST")
	api.HandleFunc("/sync/connectivity", r.getConnectivity).Methods("GET")

	// Realtime channel routes
	api.HandleFunc("/realtime/status", r.getRealtimeStatus).Methods("GET")
	api.HandleFunc("/realtime/reconnect", r.reconnectRealtime).Methods("POST")
	api.HandleFunc("/alerts", r.listAlerts).Methods("GET")
	api.HandleFunc("/alerts/{kind}/{table_id}/resolve", r.resolveAlert).Methods("POST")

	// Terminal websocket
	r.HandleFunc("/ws", r.serveWs).Methods("GET")

	// Static files for the terminal frontend
	publicDir := os.Getenv("FRONTEND_DIR")
	if publicDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(publicDir)))
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"server": "local",
	})
}

// getStatus returns the current node status
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "running",
		"instance":    r.deps.Instance,
		"online":      r.deps.Monitor != nil && r.deps.Monitor.IsOnline(),
		"terminals":   r.deps.Hub.ClientCount(),
		"build_time":  buildinfo.BuildTime,
		"commit_hash": buildinfo.CommitHash,
		"started_at":  buildinfo.StartTime,
	})
}

func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.deps.Hub, w, req)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
