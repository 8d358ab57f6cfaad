package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute

	// MaxMessageBytes caps one inbound frame; a full 500-entry sheet fits
	// comfortably.
	MaxMessageBytes = 64 << 10
)

// NewUpgrader builds an upgrader that accepts the configured origins.
// An empty list permits all origins (development mode).
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, msg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: msg,
	})
}

// ReadRequest reads and decodes one inbound frame, refreshing the idle
// deadline each time.
func ReadRequest(conn *websocket.Conn, v *Request) error {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
