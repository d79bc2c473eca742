/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

This file contains the HandleWebSocket function, which upgrades the HTTP
connection to WebSocket and hands it to the transport layer. The attached
session then goes through the same Login:/Password: dialogue as a TCP client.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"linechat/internal/pkg/logx"
	"linechat/internal/transport"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established", "remote_addr", conn.RemoteAddr().String())

		transport.ServeWS(deps.Hub, conn)
	}
}
