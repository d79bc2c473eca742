/*
Package chat contains the core logic of the chat service: the hub event loop,
the per-connection session state machine, the connection registry, and the
command grammar.

This file defines the Session struct and its explicit state enum. A session is
created when a transport attaches and destroyed when its transport drains or
fails; in between it walks the login → password → authenticating → chatting
progression driven by the hub.
*/
package chat

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linechat/internal/app/directory"
	"linechat/internal/pkg/logx"
	"linechat/internal/transport"
)

// sessionState is the explicit per-session protocol state. Each inbound event
// is dispatched against the current state; events that are illegal for a
// state are logged and ignored, never mis-handled.
type sessionState int

const (
	// stateLogin: connected, Login: prompt sent, waiting for the user name.
	stateLogin sessionState = iota

	// stateAwaitPassword: user name stored, Password: prompt sent.
	stateAwaitPassword

	// stateAuthenticating: log-on request in flight, waiting for the
	// directory-service result correlated by the pending tag.
	stateAuthenticating

	// stateChatting: authenticated and registered; lines are commands or
	// utterances.
	stateChatting

	// stateClosing: shutdown requested; inbound lines are ignored and the
	// session is destroyed once the transport reports its queue drained.
	stateClosing
)

// String implements fmt.Stringer for state logging.
func (st sessionState) String() string {
	switch st {
	case stateLogin:
		return "login"
	case stateAwaitPassword:
		return "await_password"
	case stateAuthenticating:
		return "authenticating"
	case stateChatting:
		return "chatting"
	case stateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Wire prompts and notice fragments of the line protocol.
const (
	promptLogin    = "Login:"
	promptPassword = "Password:"
	noticeJoined   = "[has joined chat]"
	noticeLeft     = "[has left chat]"
)

// profileNickKey is the persisted-profile key holding the remembered nickname.
const profileNickKey = "nick"

// guestNick is the privileged pseudo-user barred from account-changing
// commands. Unlike registry lookups, this comparison is case-insensitive;
// the asymmetry is deliberate.
const guestNick = "guest"

// Session is the server-side state of one client connection.
type Session struct {
	// id is the opaque, process-unique identity; it keys the registry and the
	// session table.
	id uuid.UUID

	// t is the connection transport. The session is its exclusive owner.
	t transport.Transport

	state sessionState

	// userName and password are the credentials-in-progress collected by the
	// login prompts.
	userName string
	password string

	// profile is the persisted-profile blob: supplied verbatim on the log-on
	// request, replaced by the directory-service response.
	profile directory.Profile

	// nick is the display nickname; set only after a successful log-on.
	nick string

	// closing is the monotonic shutdown flag. Once set, inbound lines and
	// heard broadcasts are dropped.
	closing bool

	// announced records that the departure was already broadcast (via /quit
	// or a transport-failure notice), suppressing the "[has left chat]"
	// notice at destruction.
	announced bool

	// loggedOn records a successful log-on so destruction can notify the
	// directory service of the log-off.
	loggedOn bool

	// pendingTag is the correlation tag of the in-flight log-on request.
	pendingTag string

	logger zerolog.Logger
}

// newSession builds the initial session for a freshly attached transport.
func newSession(t transport.Transport) *Session {
	return &Session{
		id:      t.ID(),
		t:       t,
		state:   stateLogin,
		profile: directory.Profile{},
		logger: logx.Logger().With().
			Str("component", "session").
			Str("session_id", t.ID().String()).
			Str("remote_addr", t.RemoteAddr()).
			Logger(),
	}
}

// isGuest reports whether the session's nickname is the guest pseudo-user.
func (s *Session) isGuest() bool {
	return strings.EqualFold(s.nick, guestNick)
}

// hear delivers one broadcast line to this session. A closing session drops
// it silently; its transport may already be tearing down.
func (s *Session) hear(line string) {
	if s.closing {
		return
	}
	s.t.Send(line)
}

// send queues a direct notice to this session's client.
func (s *Session) send(line string) {
	s.t.Send(line)
}
