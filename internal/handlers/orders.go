package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/orders"
	"github.com/xelth-com/eckposgo/internal/printer"
	"github.com/xelth-com/eckposgo/internal/store"
)

// createOrder takes a new order. The response carries a result tag telling
// the terminal whether the order reached the authority or is queued locally.
func (r *Router) createOrder(w http.ResponseWriter, req *http.Request) {
	var submitReq orders.SubmitRequest
	if err := json.NewDecoder(req.Body).Decode(&submitReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := r.deps.Orders.Submit(req.Context(), submitReq)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch result.Kind {
	case orders.ResultAccepted:
		respondJSON(w, http.StatusCreated, result)
	case orders.ResultQueued:
		respondJSON(w, http.StatusAccepted, result)
	default:
		respondJSON(w, http.StatusUnprocessableEntity, result)
	}
}

// getOrder returns a single order
func (r *Router) getOrder(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	order, err := r.deps.Orders.Get(vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// transitionOrder moves an order through its workflow
func (r *Router) transitionOrder(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	var body struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	order, err := r.deps.Orders.Transition(vars["id"], body.Status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			respondError(w, http.StatusConflict, ve.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to update order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// getReceipt renders the order as a PDF receipt
func (r *Router) getReceipt(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	order, err := r.deps.Orders.Get(vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch order")
		return
	}

	pdfBytes, err := printer.GenerateReceiptPDF(order, printer.DefaultReceiptConfig())
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate receipt: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"receipt_%s.pdf\"", order.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
	w.Write(pdfBytes)
}

// listTableOrders returns the open orders of a table
func (r *Router) listTableOrders(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	tableOrders, err := r.deps.Orders.ForTable(vars["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}
	respondJSON(w, http.StatusOK, tableOrders)
}
