package httpx

import (
	"io"
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/payments"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 16

type WebhookHandler struct {
	Payments *payments.Service
}

func (h *WebhookHandler) Register(r chi.Router) {
	r.Post("/webhooks/stripe", h.stripe)
}

// stripe answers 200 for everything but a bad signature or body, so the
// gateway only retries deliveries we could not read.
func (h *WebhookHandler) stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if err := h.Payments.Reconcile(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook processed"})
}
