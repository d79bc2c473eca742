package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linechat/internal/app/directory"
	"linechat/internal/pkg/logx"
)

// fakeTransport records everything the hub sends and requests.
type fakeTransport struct {
	id      uuid.UUID
	sent    []string
	flushed bool
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{id: uuid.New()}
}

func (f *fakeTransport) ID() uuid.UUID      { return f.id }
func (f *fakeTransport) Send(line string)   { f.sent = append(f.sent, line) }
func (f *fakeTransport) FlushAndClose()     { f.flushed = true }
func (f *fakeTransport) Close()             { f.closed = true }
func (f *fakeTransport) RemoteAddr() string { return "fake" }

// lastSent returns the most recently sent line.
func (f *fakeTransport) lastSent() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

// fakeStore is an in-memory Store with a switchable blanket outcome.
// It is called from the directory worker goroutine, hence the mutex.
type fakeStore struct {
	mu        sync.Mutex
	authorize bool
	profiles  map[string]directory.Profile
	block     chan struct{}
	calls     []string
}

func newFakeStore(authorize bool) *fakeStore {
	return &fakeStore{
		authorize: authorize,
		profiles:  make(map[string]directory.Profile),
	}
}

func (f *fakeStore) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeStore) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) LogOn(ctx context.Context, userName, password string, profile directory.Profile) (directory.LogOnResult, error) {
	if f.block != nil {
		<-f.block
	}

	f.record("logon:" + userName)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorize {
		return directory.LogOnResult{Authorized: false, UserName: userName}, nil
	}

	merged := profile.Clone()
	for k, v := range f.profiles[userName] {
		merged[k] = v
	}

	return directory.LogOnResult{
		Authorized: true,
		UserName:   userName,
		Domain:     "test",
		Password:   password,
		Profile:    merged,
	}, nil
}

func (f *fakeStore) LogOff(ctx context.Context, userName string) error {
	f.record("logoff:" + userName)
	return nil
}

func (f *fakeStore) Create(ctx context.Context, userName, password string, hasPassword bool) error {
	f.record("create:" + userName)
	return nil
}

func (f *fakeStore) Update(ctx context.Context, userName, newPassword string) error {
	f.record("update:" + userName)
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, userName string) error {
	f.record("delete:" + userName)
	return nil
}

func (f *fakeStore) Close() {}

// newBareHub builds a hub whose event loop is driven by the test instead of
// a goroutine: events are dispatched directly or pumped off the channel, so
// every assertion runs against settled state.
func newBareHub(store directory.Store, loginTimeout time.Duration) *Hub {
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
	return h
}

// pump waits for one asynchronous event (a directory result or a timeout)
// and dispatches it.
func pump(t *testing.T, h *Hub) {
	t.Helper()

	select {
	case ev := <-h.events:
		h.dispatch(ev)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hub event")
	}
}

// attach runs the attach event for a fake transport.
func attach(h *Hub, ft *fakeTransport) {
	h.dispatch(event{kind: eventAttach, id: ft.id, t: ft})
}

// line feeds one inbound line for a fake transport.
func line(h *Hub, ft *fakeTransport, text string) {
	h.dispatch(event{kind: eventLine, id: ft.id, line: text})
}

// login walks a fake transport through the whole prompt dialogue and the
// asynchronous log-on result.
func login(t *testing.T, h *Hub, ft *fakeTransport, user, pass string) *Session {
	t.Helper()

	attach(h, ft)
	line(h, ft, user)
	line(h, ft, pass)
	pump(t, h)

	return h.sessions[ft.id]
}

func TestLoginDialoguePrompts(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	ft := newFakeTransport()
	attach(h, ft)
	require.Equal(t, []string{"Login:"}, ft.sent)

	line(h, ft, "alice")
	require.Equal(t, "Password:", ft.lastSent())

	s := h.sessions[ft.id]
	require.NotNil(t, s)
	assert.Equal(t, stateAwaitPassword, s.state)
	assert.Equal(t, "alice", s.userName)

	line(h, ft, "secret")
	assert.Equal(t, stateAuthenticating, s.state)

	pump(t, h)
	assert.Equal(t, stateChatting, s.state)
	assert.Equal(t, "alice", s.nick)
	assert.True(t, h.registry.Contains(ft.id))
	assert.Equal(t, "alice [has joined chat]", ft.lastSent())
}

func TestLoginDenied(t *testing.T) {
	h := newBareHub(newFakeStore(false), 0)
	defer h.dir.Close()

	ft := newFakeTransport()
	s := login(t, h, ft, "mallory", "wrong")

	require.NotNil(t, s)
	assert.Equal(t, stateClosing, s.state)
	assert.True(t, s.closing)
	assert.True(t, ft.flushed)
	assert.Equal(t, "Login denied.", ft.lastSent())

	// Never registered, never announced.
	assert.False(t, h.registry.Contains(ft.id))
	for _, sent := range ft.sent {
		assert.NotContains(t, sent, "[has joined chat]")
	}

	// Destroyed once the transport drains, with no log-off (never logged on).
	h.dispatch(event{kind: eventDrained, id: ft.id})
	assert.NotContains(t, h.sessions, ft.id)
	assert.True(t, ft.closed)
}

func TestNicknameCollisionSuffixes(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	first := newFakeTransport()
	second := newFakeTransport()
	third := newFakeTransport()

	login(t, h, first, "bob", "pw")
	login(t, h, second, "bob", "pw")
	login(t, h, third, "bob", "pw")

	nick1, _ := h.registry.Nickname(first.id)
	nick2, _ := h.registry.Nickname(second.id)
	nick3, _ := h.registry.Nickname(third.id)

	assert.Equal(t, "bob", nick1)
	assert.Equal(t, "bob_2", nick2)
	assert.Equal(t, "bob_3", nick3)
}

func TestRememberedNicknameFromProfile(t *testing.T) {
	store := newFakeStore(true)
	store.profiles["carla"] = directory.Profile{"nick": "fancy"}

	h := newBareHub(store, 0)
	defer h.dir.Close()

	ft := newFakeTransport()
	s := login(t, h, ft, "carla", "pw")

	assert.Equal(t, "fancy", s.nick)
	nick, ok := h.registry.Nickname(ft.id)
	require.True(t, ok)
	assert.Equal(t, "fancy", nick)
}

func TestResolvedNicknameStoredIntoEmptyProfile(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	taken := newFakeTransport()
	login(t, h, taken, "dana", "pw")

	ft := newFakeTransport()
	s := login(t, h, ft, "dana", "pw")

	assert.Equal(t, "dana_2", s.nick)
	assert.Equal(t, "dana_2", s.profile["nick"])
}

func TestQuitWithMessage(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	quitter := newFakeTransport()
	peer := newFakeTransport()
	s := login(t, h, quitter, "alice", "pw")
	login(t, h, peer, "bob", "pw")

	line(h, quitter, "/quit alice bob")

	assert.Equal(t, "alice [has quit: alice bob]", peer.lastSent())
	assert.Equal(t, stateClosing, s.state)
	assert.True(t, quitter.flushed)

	// Further input from the quitter no longer affects chat state.
	peerLines := len(peer.sent)
	line(h, quitter, "hello?")
	assert.Len(t, peer.sent, peerLines)

	// Broadcasts to the quitter are dropped while it drains.
	quitterLines := len(quitter.sent)
	line(h, peer, "anyone there")
	assert.Len(t, quitter.sent, quitterLines)

	// Destruction on drain: no second departure notice.
	h.dispatch(event{kind: eventDrained, id: quitter.id})
	assert.NotContains(t, h.sessions, quitter.id)
	assert.False(t, h.registry.Contains(quitter.id))
	for _, sent := range peer.sent {
		assert.NotContains(t, sent, "[has left chat]")
	}
}

func TestQuitDefaultMessage(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	quitter := newFakeTransport()
	peer := newFakeTransport()
	login(t, h, quitter, "alice", "pw")
	login(t, h, peer, "bob", "pw")

	line(h, quitter, "/quit")
	assert.Equal(t, "alice [has quit: no quit message]", peer.lastSent())
}

func TestUtteranceBroadcastIncludesSender(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	speaker := newFakeTransport()
	listener := newFakeTransport()
	login(t, h, speaker, "alice", "pw")
	login(t, h, listener, "bob", "pw")

	line(h, speaker, "hello world")

	assert.Equal(t, "alice hello world", speaker.lastSent())
	assert.Equal(t, "alice hello world", listener.lastSent())
}

func TestNickRenameAndRejection(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	renamer := newFakeTransport()
	holder := newFakeTransport()
	s := login(t, h, renamer, "alice", "pw")
	login(t, h, holder, "carol", "pw")

	// Taken nickname: rejection notice, state unchanged.
	line(h, renamer, "/nick carol")
	assert.Equal(t, "Nickname carol is already in use.", renamer.lastSent())
	assert.Equal(t, "alice", s.nick)

	// Free nickname: rename plus notice.
	line(h, renamer, "/nick chris")
	assert.Equal(t, "chris", s.nick)
	nick, _ := h.registry.Nickname(renamer.id)
	assert.Equal(t, "chris", nick)
	assert.Equal(t, "chris [is now known as chris]", holder.lastSent())
}

func TestGuestCommandsRejected(t *testing.T) {
	store := newFakeStore(true)
	h := newBareHub(store, 0)

	ft := newFakeTransport()
	login(t, h, ft, "guest", "pw")

	for _, cmd := range []string{"/nick better", "/pass guest pw2", "/create newbie pw", "/delete victim"} {
		line(h, ft, cmd)
		assert.Contains(t, ft.lastSent(), "not available to guest users", "command %q", cmd)
	}

	// Drain the directory worker, then confirm none of the guarded commands
	// reached the store.
	h.dir.Close()
	assert.Equal(t, []string{"logon:guest"}, store.recorded())
}

func TestPassAndCreateReachDirectory(t *testing.T) {
	store := newFakeStore(true)
	h := newBareHub(store, 0)

	ft := newFakeTransport()
	login(t, h, ft, "alice", "pw")

	line(h, ft, "/pass alice newpw")
	assert.Equal(t, "alice [changed password for alice]", ft.lastSent())

	line(h, ft, "/create bob hunter2")
	line(h, ft, "/create open")
	line(h, ft, "/delete bob")

	h.dir.Close()
	assert.Equal(t,
		[]string{"logon:alice", "update:alice", "create:bob", "create:open", "delete:bob"},
		store.recorded())
}

func TestMalformedCommandsFallThroughToChat(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	ft := newFakeTransport()
	login(t, h, ft, "alice", "pw")

	line(h, ft, "/create")
	assert.Equal(t, "alice /create", ft.lastSent())

	line(h, ft, "/frobnicate everything")
	assert.Equal(t, "alice /frobnicate everything", ft.lastSent())
}

func TestTransportFailureAnnouncesAndDestroys(t *testing.T) {
	store := newFakeStore(true)
	h := newBareHub(store, 0)

	victim := newFakeTransport()
	peer := newFakeTransport()
	login(t, h, victim, "alice", "pw")
	login(t, h, peer, "bob", "pw")

	h.dispatch(event{kind: eventTransportFailed, id: victim.id, err: nil})

	assert.Equal(t, "alice [lost connection: disconnected]", peer.lastSent())
	assert.False(t, h.registry.Contains(victim.id))
	assert.NotContains(t, h.sessions, victim.id)
	assert.True(t, victim.closed)

	h.dir.Close()
	assert.Contains(t, store.recorded(), "logoff:alice")
}

func TestTransportFailureBeforeLoginIsSilent(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	stranger := newFakeTransport()
	peer := newFakeTransport()
	login(t, h, peer, "bob", "pw")

	attach(h, stranger)
	peerLines := len(peer.sent)

	h.dispatch(event{kind: eventTransportFailed, id: stranger.id, err: nil})

	assert.Len(t, peer.sent, peerLines)
	assert.NotContains(t, h.sessions, stranger.id)
}

func TestLogOnResultWithUnknownTagDropped(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	ft := newFakeTransport()
	login(t, h, ft, "alice", "pw")

	// A stray result must not disturb a chatting session.
	h.dispatch(event{kind: eventLogOnResult, result: directory.LogOnResult{
		Tag:        "stale",
		Authorized: true,
		UserName:   "intruder",
	}})

	s := h.sessions[ft.id]
	assert.Equal(t, stateChatting, s.state)
	assert.Equal(t, "alice", s.nick)
}

func TestLoginTimeout(t *testing.T) {
	store := newFakeStore(true)
	store.block = make(chan struct{})

	h := newBareHub(store, 25*time.Millisecond)

	ft := newFakeTransport()
	attach(h, ft)
	line(h, ft, "alice")
	line(h, ft, "pw")

	// The store is blocked, so the first event to arrive is the timeout.
	pump(t, h)

	s := h.sessions[ft.id]
	require.NotNil(t, s)
	assert.Equal(t, stateClosing, s.state)
	assert.Equal(t, "Login failed: directory service timeout.", ft.lastSent())

	// Release the store; its late result has a stale tag and is dropped.
	close(store.block)
	pump(t, h)
	assert.Equal(t, stateClosing, s.state)

	h.dir.Close()
}

func TestBackspaceScrubbingAppliedToChatLines(t *testing.T) {
	h := newBareHub(newFakeStore(true), 0)
	defer h.dir.Close()

	ft := newFakeTransport()
	login(t, h, ft, "alice", "pw")

	line(h, ft, "helllo\x7f\x7flo")
	assert.Equal(t, "alice helllo", ft.lastSent())
}
