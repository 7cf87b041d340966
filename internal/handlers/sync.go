package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// getSyncStatus returns the current replication engine status
func (r *Router) getSyncStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.deps.Engine.Status())
}

// triggerSync requests a full synchronization cycle
func (r *Router) triggerSync(w http.ResponseWriter, req *http.Request) {
	r.deps.Engine.RequestFullSync()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Full sync triggered",
		"status":  "processing",
	})
}

// listPendingWrites returns the durable queue contents, oldest first
func (r *Router) listPendingWrites(w http.ResponseWriter, req *http.Request) {
	entries, err := r.deps.Queue.Entries()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read pending writes")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// getSyncHistory returns the most recent sync cycle records
func (r *Router) getSyncHistory(w http.ResponseWriter, req *http.Request) {
	limit := 20
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	cycles, err := r.deps.Store.LastSyncCycles(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read sync history")
		return
	}
	respondJSON(w, http.StatusOK, cycles)
}

// resetCollection rewinds a collection's checkpoint, forcing a full re-pull
func (r *Router) resetCollection(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	collection := vars["collection"]

	if err := r.deps.Engine.ResetCollection(collection); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message":    "Checkpoint reset",
		"collection": collection,
	})
}

// getConnectivity returns route health and switch history
func (r *Router) getConnectivity(w http.ResponseWriter, req *http.Request) {
	if r.deps.Monitor == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"online": false,
			"route":  "offline",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"online":  r.deps.Monitor.IsOnline(),
		"route":   r.deps.Monitor.CurrentRoute(),
		"routes":  r.deps.Monitor.RouteStatuses(),
		"history": r.deps.Monitor.RouteHistory(),
	})
}
