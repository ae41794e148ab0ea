package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/invoices"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/payments"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Handlers is everything the API serves.
type Handlers struct {
	Orders        *OrdersHandler
	Webhooks      *WebhookHandler
	Notifications *NotificationsHandler
	Invoices      *InvoicesHandler
	Auth          *auth.Verifier
}

// Mount registers every route on r. Long-lived websocket connections are kept
// out of the request timeout.
func (h *Handlers) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		h.Webhooks.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Middleware)
			h.Orders.Register(r)
			h.Notifications.Register(r)
			h.Invoices.Register(r)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Middleware)
		h.Notifications.RegisterLive(r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Str("path", r.URL.Path).Msg("http: request failed")
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes. Stale state is checked
// first because it also matches ErrInvalidTransition.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrStaleState), errors.Is(err, invoices.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, payments.ErrUnauthenticated),
		errors.Is(err, payments.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func actorOf(w http.ResponseWriter, r *http.Request) (orders.Actor, bool) {
	a, ok := auth.ActorFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	return a, ok
}
