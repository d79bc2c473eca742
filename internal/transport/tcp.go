/*
Package transport contains the connection transports that feed the chat core.

This file defines the TCP line transport: a listener accept loop and, per
connection, a read pump that scans newline-delimited text and a write pump
that transmits queued outbound lines.
*/
package transport

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/randx"
)

// TCPServer accepts plain TCP connections and attaches a line transport for
// each one to the hub.
type TCPServer struct {
	hub      Hub
	listener net.Listener
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewTCPServer constructs a TCPServer feeding the given hub.
func NewTCPServer(hub Hub) *TCPServer {
	return &TCPServer{
		hub:    hub,
		logger: logx.Logger().With().Str("component", "tcp").Logger(),
	}
}

// ListenAndServe binds the address and runs the accept loop until Close.
func (s *TCPServer) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.listener = listener
	s.logger.Info().Str("addr", addr).Msg("Chat listener started.")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info().Msg("Chat listener closed.")
				return nil
			}

			s.logger.Warn().Err(err).Msg("Accept failed.")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops the accept loop and waits for per-connection goroutines to
// finish. Established sessions are torn down by the hub, not here.
func (s *TCPServer) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

// handleConn builds the transport for one accepted connection, attaches it to
// the hub, and runs the read pump until the connection dies.
func (s *TCPServer) handleConn(conn net.Conn) {
	t := &tcpTransport{
		id:    randx.SessionID(),
		conn:  conn,
		hub:   s.hub,
		send:  make(chan string, outboundQueueSize),
		flush: make(chan struct{}),
		done:  make(chan struct{}),
	}
	t.logger = logx.Logger().With().
		Str("component", "tcp").
		Str("session_id", t.id.String()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	go t.writePump()

	s.hub.Attach(t)
	t.readPump()
}

// tcpTransport is the Transport over one TCP connection.
type tcpTransport struct {
	id   uuid.UUID
	conn net.Conn
	hub  Hub

	// send queues outbound lines for the write pump.
	send chan string

	// flush, once closed, tells the write pump to drain and close.
	flush     chan struct{}
	flushOnce sync.Once

	// done, once closed, tears the connection down immediately.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

// ID implements Transport.
func (t *tcpTransport) ID() uuid.UUID { return t.id }

// RemoteAddr implements Transport.
func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// Send implements Transport. A full queue drops the line.
func (t *tcpTransport) Send(line string) {
	select {
	case t.send <- line:
	default:
		t.logger.Warn().Int("queue_len", len(t.send)).Msg("Outbound queue full, dropping line")
	}
}

// FlushAndClose implements Transport.
func (t *tcpTransport) FlushAndClose() {
	t.flushOnce.Do(func() { close(t.flush) })
}

// Close implements Transport.
func (t *tcpTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.Close()
	})
}

// readPump scans inbound newline-delimited text and posts each line to the
// hub. On read failure or EOF it posts a transport failure and returns.
func (t *tcpTransport) readPump() {
	scanner := bufio.NewScanner(t.conn)
	scanner.Buffer(make([]byte, 0, 1024), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		t.hub.Line(t.id, line)
	}

	// scanner.Err() is nil on a clean EOF; the hub normalizes that.
	t.hub.Fail(t.id, scanner.Err())
}

// writePump transmits queued outbound lines until the connection is closed or
// a flush request drains the queue.
func (t *tcpTransport) writePump() {
	w := bufio.NewWriter(t.conn)

	for {
		select {
		case line := <-t.send:
			if !t.writeLine(w, line) {
				t.Close()
				return
			}

		case <-t.flush:
			t.drainAndClose(w)
			return

		case <-t.done:
			return
		}
	}
}

// writeLine transmits a single line with a write deadline.
// Returns false when the write pump should terminate.
func (t *tcpTransport) writeLine(w *bufio.Writer, line string) bool {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		t.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if _, err := w.WriteString(line + "\n"); err != nil {
		t.logger.Warn().Err(err).Msg("Error writing line")
		return false
	}

	if err := w.Flush(); err != nil {
		t.logger.Warn().Err(err).Msg("Error flushing line")
		return false
	}

	return true
}

// drainAndClose transmits any remaining queued lines, closes the connection,
// and reports the drain to the hub.
func (t *tcpTransport) drainAndClose(w *bufio.Writer) {
	for {
		select {
		case line := <-t.send:
			if !t.writeLine(w, line) {
				t.Close()
				t.hub.Drained(t.id)
				return
			}
		default:
			t.Close()
			t.hub.Drained(t.id)
			return
		}
	}
}
