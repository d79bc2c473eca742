/*
Package transport contains the connection transports that feed the chat core.

This file defines the WebSocket transport. It follows the classic read/write
pump structure: the read pump enforces a read limit and pong deadlines, the
write pump transmits queued lines and periodic pings. One text frame carries
one chat line.
*/
package transport

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/randx"
)

const (
	// pongWait is the maximum time allowed to wait for a Pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod is the frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10
)

// ServeWS attaches an upgraded WebSocket connection to the hub and blocks in
// the read pump until the connection dies. The caller (the HTTP handler) has
// already performed the upgrade.
func ServeWS(hub Hub, conn *websocket.Conn) {
	t := &wsTransport{
		id:    randx.SessionID(),
		conn:  conn,
		hub:   hub,
		send:  make(chan string, outboundQueueSize),
		flush: make(chan struct{}),
		done:  make(chan struct{}),
	}
	t.logger = logx.Logger().With().
		Str("component", "ws").
		Str("session_id", t.id.String()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	go t.writePump()

	hub.Attach(t)
	t.readPump()
}

// wsTransport is the Transport over one WebSocket connection.
type wsTransport struct {
	id   uuid.UUID
	conn *websocket.Conn
	hub  Hub

	send      chan string
	flush     chan struct{}
	flushOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// ID implements Transport.
func (t *wsTransport) ID() uuid.UUID { return t.id }

// RemoteAddr implements Transport.
func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// Send implements Transport. A full queue drops the line.
func (t *wsTransport) Send(line string) {
	select {
	case t.send <- line:
	default:
		t.logger.Warn().Int("queue_len", len(t.send)).Msg("Outbound queue full, dropping line")
	}
}

// FlushAndClose implements Transport.
func (t *wsTransport) FlushAndClose() {
	t.flushOnce.Do(func() { close(t.flush) })
}

// Close implements Transport.
func (t *wsTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.Close()
	})
}

// readPump reads text frames, splits them into lines, and posts them to the
// hub. It handles the pong heartbeat and reports failure when the connection
// dies.
func (t *wsTransport) readPump() {
	t.conn.SetReadLimit(maxLineBytes)

	if err := t.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		t.logger.Error().Err(err).Msg("Failed to set read deadline")
		t.hub.Fail(t.id, err)
		return
	}

	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := t.conn.ReadMessage()
		if err != nil {
			// A normal close reads as a clean disconnect.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			t.hub.Fail(t.id, err)
			return
		}

		for _, line := range strings.Split(string(payload), "\n") {
			t.hub.Line(t.id, strings.TrimRight(line, "\r"))
		}
	}
}

// writePump transmits queued lines and periodic pings until the connection is
// closed or a flush request drains the queue.
func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case line := <-t.send:
			if !t.writeLine(line) {
				t.Close()
				return
			}

		case <-ticker.C:
			if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				t.Close()
				return
			}
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.logger.Warn().Err(err).Msg("Error writing ping")
				t.Close()
				return
			}

		case <-t.flush:
			t.drainAndClose()
			return

		case <-t.done:
			return
		}
	}
}

// writeLine transmits one line as a text frame with a write deadline.
// Returns false when the write pump should terminate.
func (t *wsTransport) writeLine(line string) bool {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		t.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		t.logger.Warn().Err(err).Msg("Error writing line")
		return false
	}

	return true
}

// drainAndClose transmits remaining queued lines, sends a close frame, closes
// the connection, and reports the drain to the hub.
func (t *wsTransport) drainAndClose() {
	for {
		select {
		case line := <-t.send:
			if !t.writeLine(line) {
				t.Close()
				t.hub.Drained(t.id)
				return
			}
		default:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
				t.logger.Warn().Err(err).Msg("Error writing close message")
			}

			t.Close()
			t.hub.Drained(t.id)
			return
		}
	}
}
