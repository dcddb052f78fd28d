// Package websocket streams live job events to dashboard connections. Each
// connection holds one bounded hub subscription; a lagging client loses its
// oldest events rather than slowing the publishers down.
package websocket

import (
	"net/http"
	"time"

	"github.com/doomedramen/autopwn/internal/services"
	"github.com/doomedramen/autopwn/pkg/debug"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The control API sits behind the deployment's own ingress.
		return true
	},
}

// Handler upgrades dashboard connections and pumps hub events to them.
type Handler struct {
	hub *services.NotificationHub
}

// NewHandler creates a websocket handler over the notification hub.
func NewHandler(hub *services.NotificationHub) *Handler {
	return &Handler{hub: hub}
}

// ServeWS handles GET /api/v1/ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error("WebSocket upgrade failed: %v", err)
		return
	}

	sub := h.hub.Subscribe()
	debug.Info("WebSocket client connected from %s", r.RemoteAddr)

	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// writePump forwards subscribed events and keeps the connection alive with
// pings. It owns all writes to the connection.
func (h *Handler) writePump(conn *websocket.Conn, sub *services.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				debug.Debug("WebSocket write failed: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and detects disconnects. Closing the
// subscription ends the write pump.
func (h *Handler) readPump(conn *websocket.Conn, sub *services.Subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
		debug.Info("WebSocket client disconnected")
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Debug("WebSocket read error: %v", err)
			}
			return
		}
	}
}
