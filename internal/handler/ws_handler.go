/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for upgrading
the HTTP connection to WebSocket, assigning the connection its identifier, and running the client
lifecycle until the connection ends.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"growchat/internal/app/chat"
	"growchat/internal/pkg/logx"
	"growchat/internal/pkg/randx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Rate limiting happens in the route's middleware before this handler runs.
func HandleWebSocket(router *chat.Router, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		connID := randx.ConnectionID()
		client := chat.NewClient(connID, conn, router)

		if err := router.Connect(connID, client); err != nil {
			logx.Warn("WebSocket connection rejected: router is not accepting connections.", "conn_id", connID)

			closeMessage := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			if err := conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second)); err != nil {
				logx.Debug("Failed to send close frame", "conn_id", connID, "error", err.Error())
			}

			if err := conn.Close(); err != nil {
				logx.Debug("Failed to close rejected connection", "conn_id", connID, "error", err.Error())
			}
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established", "conn_id", connID)

		client.ReadPump()
	}
}
