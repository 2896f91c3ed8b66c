package httppresentation

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smalob/marketplace/internal/domain/identity"
	"github.com/smalob/marketplace/internal/domain/notification"
	"github.com/smalob/marketplace/internal/observability"
	"github.com/smalob/marketplace/internal/observability/logctx"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 2 * wsPingPeriod
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleNotificationSocket streams order events to the caller over a
// websocket. The channel is derived from the caller's identity: vendors get
// their vendor channel, customers their customer channel. Admins may watch
// any channel via the channel query parameter.
func (h *Handler) handleNotificationSocket(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.From(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var channel string
	switch actor.Role {
	case identity.RoleVendor:
		channel = notification.VendorChannel(actor.UserID)
	case identity.RoleCustomer:
		channel = notification.CustomerChannel(actor.UserID)
	case identity.RoleAdmin:
		channel = r.URL.Query().Get("channel")
		if channel == "" {
			writeError(w, http.StatusBadRequest, "admin subscribers must name a channel")
			return
		}
	default:
		writeError(w, http.StatusForbidden, "unknown role")
		return
	}

	log := logctx.FromOr(r.Context(), h.log)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		log.Warn("websocket upgrade failed", observability.F("error", err.Error()))
		return
	}

	sub := h.hub.Subscribe(channel)
	defer sub.Close()
	defer conn.Close()

	log.Info("websocket subscriber attached", observability.F("channel", channel))

	// Reader runs only to observe the close handshake and pong replies.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, open := <-sub.Events():
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Debug("websocket write failed, detaching subscriber",
					observability.F("channel", channel),
					observability.F("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
