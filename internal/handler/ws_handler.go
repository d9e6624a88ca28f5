/*
Package handler provides the HTTP handlers and routing setup for the collabchat server.

This file contains the HandleWebSocket function, which upgrades the HTTP
connection to WebSocket and starts the connection's read and write pumps.
Identification happens afterwards, over the socket itself, via the
user_connect frame. Rate limiting runs as route middleware before the upgrade.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"collabchat/internal/hub"
	"collabchat/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(h *hub.Hub, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		c := hub.NewConn(h, conn)

		go c.WritePump()
		c.ReadPump()
	}
}
