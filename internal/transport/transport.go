/*
Package transport contains the connection transports that feed the chat core.

A transport turns a raw client connection into discrete inbound text lines and
accepts outbound text lines for transmission. Two implementations exist: a
plain TCP line transport and a WebSocket transport. Transports never touch
session state; they post events to the Hub interface and queue outbound lines.
*/
package transport

import (
	"time"

	"github.com/google/uuid"
)

const (
	// outboundQueueSize bounds the per-connection outbound line queue.
	outboundQueueSize = 256

	// maxLineBytes is the maximum accepted length of one inbound line.
	maxLineBytes = 8192

	// writeWait is the timeout duration for writing to the connection.
	writeWait = 10 * time.Second
)

// Hub receives transport events. It is implemented by the chat core; every
// method hands the event to a single processing loop, so transports may call
// them from any goroutine.
type Hub interface {
	// Attach announces a new connection. The hub creates a session for it.
	Attach(t Transport)

	// Line delivers one decoded inbound text line.
	Line(id uuid.UUID, text string)

	// Fail reports a read error or EOF. A nil error means a clean disconnect.
	Fail(id uuid.UUID, err error)

	// Drained reports that a FlushAndClose request completed: every queued
	// outbound line was transmitted and the connection is closed.
	Drained(id uuid.UUID)
}

// Transport is the per-connection handle held by a session. Outbound methods
// never block: a full queue drops the line with a warning.
type Transport interface {
	// ID is the process-unique identity of this connection.
	ID() uuid.UUID

	// Send queues one outbound line for transmission.
	Send(line string)

	// FlushAndClose lets the writer drain the outbound queue, then closes the
	// connection and reports Drained to the hub. Idempotent.
	FlushAndClose()

	// Close tears the connection down immediately, discarding queued output.
	// Idempotent.
	Close()

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}
