package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// listTables returns every table with its reconciled effective status
func (r *Router) listTables(w http.ResponseWriter, req *http.Request) {
	views, err := r.deps.Facade.Snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to build table snapshot")
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// getTableStatus returns one table's reconciled view
func (r *Router) getTableStatus(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	view, err := r.deps.Facade.TableStatus(vars["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Table not found")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// getMenu returns the menu categories and items
func (r *Router) getMenu(w http.ResponseWriter, req *http.Request) {
	categories, items, err := r.deps.Store.ListMenu()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch menu")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"items":      items,
	})
}
