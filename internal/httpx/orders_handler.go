package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payments"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	Engine   *orders.Engine
	Payments *payments.Service
}

type CreateOrderReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// TransitionReq is optional; ExpectedStatus turns a lost race into 409.
type TransitionReq struct {
	ExpectedStatus orders.Status `json:"expected_status,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/approve", h.transition(orders.TransitionApprove))
	r.Post("/orders/{id}/reject", h.transition(orders.TransitionReject))
	r.Post("/orders/{id}/cancel", h.transition(orders.TransitionCancel))
	r.Post("/orders/{id}/ship", h.transition(orders.TransitionShip))
	r.Post("/orders/{id}/payment-session", h.paymentSession)
	r.Get("/orders/{id}/transactions", h.orderTransactions)
	r.Get("/transactions", h.userTransactions)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}

	o, err := h.Engine.CreateOrder(r.Context(), actor, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	o, err := h.Engine.GetOrder(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) transition(t orders.Transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOf(w, r)
		if !ok {
			return
		}
		var req TransitionReq
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
				return
			}
		}

		o, err := h.Engine.ApplyTransition(r.Context(), orders.Request{
			OrderID:    chi.URLParam(r, "id"),
			Actor:      actor,
			Transition: t,
			Expected:   req.ExpectedStatus,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *OrdersHandler) paymentSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	co, err := h.Payments.InitiatePayment(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

func (h *OrdersHandler) orderTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	txs, err := h.Engine.OrderHistory(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *OrdersHandler) userTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	txs, err := h.Engine.UserHistory(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}
