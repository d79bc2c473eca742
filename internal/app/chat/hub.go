/*
Package chat contains the core logic of the chat service.

This file defines the Hub, the single coordinating component that owns every
session, the connection registry, and the pending directory-request table.
All state mutation happens inside one event loop goroutine: transports and
the directory client post discrete events (attach, line, failure, drain,
log-on result) and the loop processes them one at a time, so no handler ever
races another. Broadcast is the one place an event handler synchronously
invokes other sessions' logic before returning; that ordering guarantee is
what keeps a departing sender from being delivered to after its transport is
gone.
*/
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linechat/internal/app/directory"
	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/randx"
	"linechat/internal/transport"
)

// eventQueueSize bounds the hub's inbound event channel.
const eventQueueSize = 1024

// eventKind discriminates the events the hub loop processes.
type eventKind int

const (
	eventAttach eventKind = iota
	eventLine
	eventTransportFailed
	eventDrained
	eventLogOnResult
	eventLogOnTimeout
)

// event is one unit of work for the hub loop.
type event struct {
	kind   eventKind
	id     uuid.UUID
	t      transport.Transport
	line   string
	err    error
	result directory.LogOnResult
	tag    string
}

// Hub owns all sessions, the registry, and the authentication client, and
// runs the event loop that drives them.
type Hub struct {
	events   chan event
	sessions map[uuid.UUID]*Session
	registry *Registry
	dir      *directory.Client

	// pending correlates in-flight log-on tags with the originating session,
	// so an asynchronous result reaches that session's state machine only.
	pending map[string]uuid.UUID

	// loginTimeout bounds the log-on round trip; zero waits forever.
	loginTimeout time.Duration

	stop   chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewHub constructs a Hub over the given credential store and starts its
// event loop.
func NewHub(store directory.Store, loginTimeout time.Duration) *Hub {
	h := &Hub{
		events:       make(chan event, eventQueueSize),
		sessions:     make(map[uuid.UUID]*Session),
		registry:     NewRegistry(),
		pending:      make(map[string]uuid.UUID),
		loginTimeout: loginTimeout,
		stop:         make(chan struct{}),
		logger:       logx.Logger().With().Str("component", "hub").Logger(),
	}

	h.dir = directory.NewClient(store, h.deliverLogOn)

	h.wg.Add(1)
	go h.run()

	return h
}

// Shutdown stops the event loop, tears down remaining transports, and waits
// for the directory worker to drain.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	close(h.stop)
	h.wg.Wait()
	h.dir.Close()

	h.logger.Info().Msg("Hub shutdown complete.")
}

// Attach implements transport.Hub.
func (h *Hub) Attach(t transport.Transport) {
	h.post(event{kind: eventAttach, id: t.ID(), t: t})
}

// Line implements transport.Hub.
func (h *Hub) Line(id uuid.UUID, text string) {
	h.post(event{kind: eventLine, id: id, line: text})
}

// Fail implements transport.Hub.
func (h *Hub) Fail(id uuid.UUID, err error) {
	h.post(event{kind: eventTransportFailed, id: id, err: err})
}

// Drained implements transport.Hub.
func (h *Hub) Drained(id uuid.UUID) {
	h.post(event{kind: eventDrained, id: id})
}

// deliverLogOn receives log-on results from the directory worker.
func (h *Hub) deliverLogOn(result directory.LogOnResult) {
	h.post(event{kind: eventLogOnResult, result: result})
}

// post hands an event to the loop, giving up once the hub is stopping.
func (h *Hub) post(ev event) {
	select {
	case h.events <- ev:
	case <-h.stop:
	}
}

// run is the hub's event loop: one event at a time, no concurrency between
// handlers.
func (h *Hub) run() {
	defer h.wg.Done()

	h.logger.Info().Msg("Hub event loop started.")

	for {
		select {
		case ev := <-h.events:
			h.dispatch(ev)

		case <-h.stop:
			for _, s := range h.sessions {
				s.t.Close()
			}
			h.logger.Info().Int("sessions", len(h.sessions)).Msg("Hub event loop stopped.")
			return
		}
	}
}

// dispatch routes one event to the handler for its kind, resolving the
// session where one is addressed. Events for sessions that no longer exist
// are dropped; a destroyed session's transport may still have events in
// flight.
func (h *Hub) dispatch(ev event) {
	switch ev.kind {
	case eventAttach:
		h.handleAttach(ev.t)

	case eventLine:
		if s, ok := h.sessions[ev.id]; ok {
			h.handleLine(s, ev.line)
		}

	case eventTransportFailed:
		if s, ok := h.sessions[ev.id]; ok {
			h.handleTransportFailure(s, ev.err)
		}

	case eventDrained:
		if s, ok := h.sessions[ev.id]; ok {
			h.finishSession(s)
		}

	case eventLogOnResult:
		h.handleLogOnResult(ev.result)

	case eventLogOnTimeout:
		h.handleLogOnTimeout(ev.tag)
	}
}

// handleAttach creates the session for a new transport and opens the login
// dialogue.
func (h *Hub) handleAttach(t transport.Transport) {
	s := newSession(t)
	h.sessions[s.id] = s

	s.logger.Info().Msg("Session attached.")
	s.send(promptLogin)
}

// handleLine dispatches one inbound line against the session's current state.
func (h *Hub) handleLine(s *Session, line string) {
	switch s.state {
	case stateLogin:
		s.userName = strings.TrimSpace(line)
		s.state = stateAwaitPassword
		s.send(promptPassword)

	case stateAwaitPassword:
		s.password = strings.TrimSpace(line)
		h.beginLogOn(s)

	case stateAuthenticating:
		s.logger.Debug().Msg("Dropping line received while authenticating.")

	case stateChatting:
		h.handleChatLine(s, line)

	case stateClosing:
		s.logger.Debug().Msg("Dropping line received while shutting down.")
	}
}

// beginLogOn issues the directory-service log-on request for the collected
// credentials and moves the session to the authenticating state.
func (h *Hub) beginLogOn(s *Session) {
	tag, err := randx.Tag()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Falling back to UUID correlation tag.")
		tag = uuid.NewString()
	}

	s.state = stateAuthenticating
	s.pendingTag = tag
	h.pending[tag] = s.id

	s.logger.Info().Str("user_name", s.userName).Msg("Issuing log-on request.")
	h.dir.LogOn(s.userName, s.password, s.profile, tag)

	if h.loginTimeout > 0 {
		time.AfterFunc(h.loginTimeout, func() {
			h.post(event{kind: eventLogOnTimeout, tag: tag})
		})
	}
}

// handleLogOnResult routes an asynchronous directory result back to the
// originating session. Results with unknown tags, or arriving after the
// session left the authenticating state, are dropped.
func (h *Hub) handleLogOnResult(result directory.LogOnResult) {
	id, ok := h.pending[result.Tag]
	if !ok {
		h.logger.Warn().Str("tag", result.Tag).Msg("Dropping log-on result with unknown tag.")
		return
	}
	delete(h.pending, result.Tag)

	s, ok := h.sessions[id]
	if !ok {
		h.logger.Warn().Str("tag", result.Tag).Msg("Dropping log-on result for destroyed session.")
		return
	}

	if s.state != stateAuthenticating {
		s.logger.Warn().
			Stringer("state", s.state).
			Msg("Dropping log-on result outside the authenticating state.")
		return
	}
	s.pendingTag = ""

	if !result.Authorized {
		s.logger.Info().Str("user_name", s.userName).Msg("Log-on denied.")
		s.send(errs.NewError(errs.ErrLoginDenied).Message)
		h.beginShutdown(s)
		return
	}

	s.loggedOn = true
	s.password = ""
	if result.Profile != nil {
		s.profile = result.Profile
	}

	desired := s.profile[profileNickKey]
	hadRememberedNick := desired != ""
	if desired == "" {
		desired = result.UserName
	}

	nick := h.registry.ResolveNickname(desired)
	s.nick = nick
	h.registry.Register(s, nick)

	if !hadRememberedNick {
		s.profile[profileNickKey] = nick
	}

	s.state = stateChatting
	s.logger.Info().
		Str("user_name", result.UserName).
		Str("domain", result.Domain).
		Str("nick", nick).
		Msg("Log-on authorized, session chatting.")

	h.registry.Broadcast(s.id, noticeJoined)
}

// handleLogOnTimeout converts a stalled log-on into a denial. Only reachable
// when a login timeout is configured; a tag that already completed is a no-op.
func (h *Hub) handleLogOnTimeout(tag string) {
	id, ok := h.pending[tag]
	if !ok {
		return
	}
	delete(h.pending, tag)

	s, ok := h.sessions[id]
	if !ok || s.state != stateAuthenticating {
		return
	}
	s.pendingTag = ""

	s.logger.Warn().Str("user_name", s.userName).Msg("Log-on timed out.")
	s.send(errs.NewError(errs.ErrLoginTimedOut).Message)
	h.beginShutdown(s)
}

// handleChatLine cleans one chatting-state line and dispatches the parsed
// command.
func (h *Hub) handleChatLine(s *Session, line string) {
	cleaned := scrubBackspaces(line)
	cmd := ParseCommand(cleaned)

	switch cmd.Kind {
	case CmdNick:
		h.handleNick(s, cmd.Name)

	case CmdPass:
		h.handlePass(s, cmd.Name, cmd.Password)

	case CmdCreate:
		h.handleCreate(s, cmd)

	case CmdDelete:
		h.handleDelete(s, cmd.Name)

	case CmdQuit:
		h.handleQuit(s, cmd.Message)

	case CmdSay:
		if cmd.Message != "" {
			h.registry.Broadcast(s.id, cmd.Message)
		}
	}
}

// guestBlocked rejects a privileged command from the guest pseudo-user with
// an in-chat notice. No directory call is made and no state changes.
func (h *Hub) guestBlocked(s *Session, command string) bool {
	if !s.isGuest() {
		return false
	}

	s.logger.Info().Str("command", command).Msg("Guest command rejected.")
	s.send(errs.NewError(errs.ErrGuestRestricted, command).Message)
	return true
}

// handleNick renames the session, rejecting taken nicknames with a notice.
func (h *Hub) handleNick(s *Session, nick string) {
	if h.guestBlocked(s, "/nick") {
		return
	}

	if _, taken := h.registry.Lookup(nick); taken {
		s.send(errs.NewError(errs.ErrNicknameTaken, nick).Message)
		return
	}

	h.registry.Rename(s.id, nick)
	s.nick = nick
	h.registry.Broadcast(s.id, "[is now known as "+nick+"]")
}

// handlePass requests a directory password update and echoes a confirmation
// of the request to chat. The outcome of the update is not observed.
func (h *Hub) handlePass(s *Session, userName, newPassword string) {
	if h.guestBlocked(s, "/pass") {
		return
	}

	h.dir.Update(userName, newPassword)
	h.registry.Broadcast(s.id, "[changed password for "+userName+"]")
}

// handleCreate requests a directory account creation, with or without an
// initial password. Fire-and-forget.
func (h *Hub) handleCreate(s *Session, cmd Command) {
	if h.guestBlocked(s, "/create") {
		return
	}

	h.dir.Create(cmd.Name, cmd.Password, cmd.HasPassword)
}

// handleDelete requests a directory account deletion. Fire-and-forget.
func (h *Hub) handleDelete(s *Session, userName string) {
	if h.guestBlocked(s, "/delete") {
		return
	}

	h.dir.Delete(userName)
}

// handleQuit broadcasts the departure notice and starts the graceful
// shutdown. The connection stays up until queued output drains.
func (h *Hub) handleQuit(s *Session, message string) {
	h.registry.Broadcast(s.id, "[has quit: "+message+"]")
	s.announced = true
	h.beginShutdown(s)
}

// beginShutdown moves a session to the closing state and asks its transport
// to drain queued output before closing.
func (h *Hub) beginShutdown(s *Session) {
	s.closing = true
	s.state = stateClosing
	s.t.FlushAndClose()
}

// handleTransportFailure reacts to a read error or EOF. A failure racing an
// already-requested shutdown just finishes the teardown; otherwise the error
// is normalized, announced if the session was registered, and the session is
// destroyed.
func (h *Hub) handleTransportFailure(s *Session, err error) {
	if s.state == stateClosing {
		h.finishSession(s)
		return
	}

	reason := "disconnected"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}

	s.logger.Warn().Str("reason", reason).Msg("Transport failed.")

	if h.registry.Contains(s.id) {
		h.registry.Broadcast(s.id, "[lost connection: "+reason+"]")
		s.announced = true
	}

	h.finishSession(s)
}

// finishSession destroys a session exactly once: directory log-off, the
// departure notice when none was announced yet, registry removal, transport
// teardown. Later events addressed to the identity find no session and are
// dropped by dispatch.
func (h *Hub) finishSession(s *Session) {
	s.closing = true

	if s.loggedOn {
		h.dir.LogOff(s.userName)
	}

	if h.registry.Contains(s.id) {
		if !s.announced {
			h.registry.Broadcast(s.id, noticeLeft)
		}
		h.registry.Remove(s.id)
	}

	delete(h.sessions, s.id)
	s.t.Close()

	s.logger.Info().Msg("Session destroyed.")
}
