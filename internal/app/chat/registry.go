/*
Package chat contains the core logic of the chat service.

This file defines the Registry, the process-wide index of currently chatting
sessions and their nicknames. The registry is owned by the Hub and touched
only from its event loop, so it needs no locking; it holds non-owning
references and must never outlive-check a destroyed session.
*/
package chat

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"linechat/internal/pkg/logx"
)

// member is one registry entry: a session handle and its nickname.
type member struct {
	session *Session
	nick    string
}

// Registry maps session identities to (session, nickname) pairs and fans
// broadcasts out to every registered session.
//
// Invariant: registered nicknames are pairwise distinct, compared as exact
// (case-sensitive) string equality.
type Registry struct {
	members map[uuid.UUID]*member
	logger  zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[uuid.UUID]*member),
		logger:  logx.Logger().With().Str("component", "registry").Logger(),
	}
}

// Lookup returns the session holding the given nickname, exact match.
func (r *Registry) Lookup(nick string) (*Session, bool) {
	for _, m := range r.members {
		if m.nick == nick {
			return m.session, true
		}
	}
	return nil, false
}

// Contains reports whether the session identity has a registry entry.
func (r *Registry) Contains(id uuid.UUID) bool {
	_, ok := r.members[id]
	return ok
}

// Nickname returns the registered nickname for a session identity.
func (r *Registry) Nickname(id uuid.UUID) (string, bool) {
	m, ok := r.members[id]
	if !ok {
		return "", false
	}
	return m.nick, true
}

// Register inserts or overwrites the entry for a session. The caller must
// have already ensured the nickname is free (see ResolveNickname).
func (r *Registry) Register(s *Session, nick string) {
	r.members[s.id] = &member{session: s, nick: nick}
	r.logger.Info().
		Str("session_id", s.id.String()).
		Str("nick", nick).
		Int("total_sessions", len(r.members)).
		Msg("Session registered.")
}

// Rename updates the nickname of an existing entry in place. The caller must
// have already ensured the new nickname is free.
func (r *Registry) Rename(id uuid.UUID, nick string) {
	m, ok := r.members[id]
	if !ok {
		r.logger.Warn().Str("session_id", id.String()).Msg("Rename for unregistered session ignored.")
		return
	}

	r.logger.Info().
		Str("session_id", id.String()).
		Str("old_nick", m.nick).
		Str("new_nick", nick).
		Msg("Session renamed.")
	m.nick = nick
}

// Remove deletes the entry for a session identity; no-op when absent.
func (r *Registry) Remove(id uuid.UUID) {
	if _, ok := r.members[id]; !ok {
		return
	}

	delete(r.members, id)
	r.logger.Info().
		Str("session_id", id.String()).
		Int("total_sessions", len(r.members)).
		Msg("Session removed from registry.")
}

// ResolveNickname returns the desired nickname when free, otherwise the first
// free numeric-suffix variant: desired_2, desired_3, and so on.
func (r *Registry) ResolveNickname(desired string) string {
	if !r.taken(desired) {
		return desired
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", desired, i)
		if !r.taken(candidate) {
			return candidate
		}
	}
}

// taken reports whether any entry holds the nickname, exact match.
func (r *Registry) taken(nick string) bool {
	_, ok := r.Lookup(nick)
	return ok
}

// Broadcast delivers text, prefixed with the sender's nickname, to every
// registered session including the sender. Delivery is a direct, synchronous
// call into each recipient's heard handler: the call does not return until
// all recipients processed the line, so a sender removed right after its own
// broadcast can never be delivered to after its transport is gone. A sender
// with no registry entry makes the call a no-op.
func (r *Registry) Broadcast(senderID uuid.UUID, text string) {
	sender, ok := r.members[senderID]
	if !ok {
		r.logger.Debug().
			Str("session_id", senderID.String()).
			Msg("Broadcast from unregistered session dropped.")
		return
	}

	line := sender.nick + " " + text
	for _, m := range r.members {
		m.session.hear(line)
	}
}
