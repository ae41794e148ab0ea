package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/invoices"
	"github.com/go-chi/chi/v5"
)

type InvoicesHandler struct {
	Service *invoices.Service
}

func (h *InvoicesHandler) Register(r chi.Router) {
	r.Get("/sales-orders/{id}/invoice", h.download)
	r.Post("/sales-orders/{id}/invoice", h.request)
}

func (h *InvoicesHandler) download(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	url, err := h.Service.DownloadURL(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *InvoicesHandler) request(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	if err := h.Service.Request(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
