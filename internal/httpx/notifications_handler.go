package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"
)

type NotificationsHandler struct {
	Fanout *notify.Fanout
}

// wsFrame is what the live channel sends for each notification.
type wsFrame struct {
	Notification notify.Notification `json:"notification"`
}

func (h *NotificationsHandler) Register(r chi.Router) {
	r.Get("/notifications", h.list(false))
	r.Get("/notifications/unread", h.list(true))
	r.Post("/notifications/read-all", h.markAllRead)
	r.Post("/notifications/{id}/read", h.markRead)
}

func (h *NotificationsHandler) RegisterLive(r chi.Router) {
	r.Get("/ws/notifications", h.live)
}

func (h *NotificationsHandler) list(unread bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorOf(w, r)
		if !ok {
			return
		}
		var (
			ns  []notify.Notification
			err error
		)
		if unread {
			ns, err = h.Fanout.Unread(r.Context(), actor.UserID)
		} else {
			ns, err = h.Fanout.List(r.Context(), actor.UserID)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ns)
	}
}

func (h *NotificationsHandler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	if err := h.Fanout.MarkRead(r.Context(), actor.UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationsHandler) markAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	n, err := h.Fanout.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *NotificationsHandler) live(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(w, r)
	if !ok {
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(conn.Request().Context())
		defer cancel()
		// the client never sends anything we use; reading only detects the close
		go func() {
			defer cancel()
			var discard any
			for websocket.JSON.Receive(conn, &discard) == nil {
			}
		}()

		err := h.Fanout.Stream(ctx, actor.UserID, func(n notify.Notification) error {
			return websocket.JSON.Send(conn, wsFrame{Notification: n})
		})
		if err != nil {
			log.Debug().Err(err).Str("user_id", actor.UserID).Msg("http: live notifications closed")
		}
	}).ServeHTTP(w, r)
}
