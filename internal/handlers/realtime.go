package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xelth-com/eckposgo/internal/realtime"
)

// getRealtimeStatus returns the venue event channel state
func (r *Router) getRealtimeStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":    r.deps.Channel.State(),
		"attempts": r.deps.Channel.Attempts(),
		"alerts":   len(r.deps.Channel.Alerts()),
	})
}

// reconnectRealtime restarts a failed event channel
func (r *Router) reconnectRealtime(w http.ResponseWriter, req *http.Request) {
	r.deps.Channel.Reconnect()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Reconnect requested",
	})
}

// listAlerts returns active guest alerts, oldest first
func (r *Router) listAlerts(w http.ResponseWriter, req *http.Request) {
	alerts := r.deps.Channel.Alerts()
	if tableID := req.URL.Query().Get("table_id"); tableID != "" {
		alerts = r.deps.Channel.TableAlerts(tableID)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// resolveAlert acknowledges a guest alert
func (r *Router) resolveAlert(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	kind := realtime.EventKind(vars["kind"])
	tableID := vars["table_id"]

	if !r.deps.Channel.Resolve(kind, tableID) {
		respondError(w, http.StatusNotFound, "No such alert")
		return
	}

	if r.deps.Facade != nil {
		r.deps.Facade.Invalidate(tableID, "alert_resolved")
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":  "Alert resolved",
		"kind":     string(kind),
		"table_id": tableID,
	})
}
