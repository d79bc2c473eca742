/*
Package chat contains the core logic of the chat service.

This file defines the command grammar spoken once a session is chatting.
Command words are case-insensitive, surrounding whitespace is ignored, and
anything that fails every pattern — including malformed or unknown slash
commands — falls through to a plain utterance. There is no "unknown command"
error by design.
*/
package chat

import (
	"regexp"
	"strings"
)

// CommandKind classifies a parsed chat line.
type CommandKind int

const (
	// CmdSay is a plain utterance to broadcast.
	CmdSay CommandKind = iota

	// CmdNick renames the session.
	CmdNick

	// CmdPass requests a directory-service password update.
	CmdPass

	// CmdCreate requests a directory-service account creation.
	CmdCreate

	// CmdDelete requests a directory-service account deletion.
	CmdDelete

	// CmdQuit is a graceful departure.
	CmdQuit
)

// DefaultQuitMessage is used when /quit carries no message.
const DefaultQuitMessage = "no quit message"

// Command is one classified chat line with its typed arguments.
type Command struct {
	Kind CommandKind

	// Name is the nickname (/nick) or account name (/pass, /create, /delete).
	Name string

	// Password is the password argument of /pass and /create.
	Password string

	// HasPassword distinguishes /create with a password from /create without.
	HasPassword bool

	// Message is the utterance text (CmdSay) or the quit message (CmdQuit).
	Message string
}

var (
	nickPattern   = regexp.MustCompile(`(?i)^/nick\s+(\S+)$`)
	passPattern   = regexp.MustCompile(`(?i)^/pass\s+(\S+)\s+(\S+)$`)
	createPattern = regexp.MustCompile(`(?i)^/create\s+(\S+)(?:\s+(\S+))?$`)
	deletePattern = regexp.MustCompile(`(?i)^/delete\s+(\S+)$`)
	quitPattern   = regexp.MustCompile(`(?i)^/quit(?:\s+(.*))?$`)
)

// ParseCommand classifies one inbound chat line. First match wins.
func ParseCommand(line string) Command {
	trimmed := strings.TrimSpace(line)

	if m := nickPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CmdNick, Name: m[1]}
	}

	if m := passPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CmdPass, Name: m[1], Password: m[2], HasPassword: true}
	}

	if m := createPattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CmdCreate, Name: m[1], Password: m[2], HasPassword: m[2] != ""}
	}

	if m := deletePattern.FindStringSubmatch(trimmed); m != nil {
		return Command{Kind: CmdDelete, Name: m[1]}
	}

	if m := quitPattern.FindStringSubmatch(trimmed); m != nil {
		message := collapseWhitespace(m[1])
		if message == "" {
			message = DefaultQuitMessage
		}
		return Command{Kind: CmdQuit, Message: message}
	}

	return Command{Kind: CmdSay, Message: trimmed}
}

// collapseWhitespace trims the string and folds internal whitespace runs into
// a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
