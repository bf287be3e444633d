package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/starford/commitquest/internal/sse"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	// Renderers are served from other local origins (dev servers, file://).
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket streams broker events as JSON text frames {"type", "data"}.
// Idle connections are pinged at the SSE keepalive interval.
//
//	@Summary		Live event stream over WebSocket
//	@Tags			events
//	@Success		101
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ws [get]
func WebSocket(broker *sse.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("ws: upgrade failed", slog.String("error", err.Error()))
			return
		}
		defer conn.Close()

		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		// Reads only detect the peer going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(sse.KeepaliveInterval)
		defer ping.Stop()

		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			case ev, ok := <-ch:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(wsWriteTimeout))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					slog.Debug("ws: write failed", slog.String("error", err.Error()))
					return
				}
			}
		}
	}
}
