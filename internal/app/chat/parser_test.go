package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			name: "plain utterance",
			line: "hello everyone",
			want: Command{Kind: CmdSay, Message: "hello everyone"},
		},
		{
			name: "utterance surrounding whitespace trimmed",
			line: "   hi there  ",
			want: Command{Kind: CmdSay, Message: "hi there"},
		},
		{
			name: "empty line",
			line: "",
			want: Command{Kind: CmdSay, Message: ""},
		},
		{
			name: "nick",
			line: "/nick alice",
			want: Command{Kind: CmdNick, Name: "alice"},
		},
		{
			name: "nick case-insensitive command word",
			line: "/NICK Alice",
			want: Command{Kind: CmdNick, Name: "Alice"},
		},
		{
			name: "nick padded",
			line: "  /nick bob  ",
			want: Command{Kind: CmdNick, Name: "bob"},
		},
		{
			name: "nick without argument falls through to utterance",
			line: "/nick",
			want: Command{Kind: CmdSay, Message: "/nick"},
		},
		{
			name: "nick with two arguments falls through to utterance",
			line: "/nick one two",
			want: Command{Kind: CmdSay, Message: "/nick one two"},
		},
		{
			name: "pass",
			line: "/pass alice newsecret",
			want: Command{Kind: CmdPass, Name: "alice", Password: "newsecret", HasPassword: true},
		},
		{
			name: "pass missing password falls through to utterance",
			line: "/pass alice",
			want: Command{Kind: CmdSay, Message: "/pass alice"},
		},
		{
			name: "create with password",
			line: "/create bob hunter2",
			want: Command{Kind: CmdCreate, Name: "bob", Password: "hunter2", HasPassword: true},
		},
		{
			name: "create without password",
			line: "/create bob",
			want: Command{Kind: CmdCreate, Name: "bob"},
		},
		{
			name: "create uppercase command word",
			line: "/CREATE carol pw",
			want: Command{Kind: CmdCreate, Name: "carol", Password: "pw", HasPassword: true},
		},
		{
			name: "delete",
			line: "/delete bob",
			want: Command{Kind: CmdDelete, Name: "bob"},
		},
		{
			name: "quit without message gets default",
			line: "/quit",
			want: Command{Kind: CmdQuit, Message: DefaultQuitMessage},
		},
		{
			name: "quit with message",
			line: "/quit gone fishing",
			want: Command{Kind: CmdQuit, Message: "gone fishing"},
		},
		{
			name: "quit message whitespace collapsed",
			line: "/quit   so   long   ",
			want: Command{Kind: CmdQuit, Message: "so long"},
		},
		{
			name: "quit with only whitespace gets default",
			line: "/quit    ",
			want: Command{Kind: CmdQuit, Message: DefaultQuitMessage},
		},
		{
			name: "unknown slash command falls through to utterance",
			line: "/dance wildly",
			want: Command{Kind: CmdSay, Message: "/dance wildly"},
		},
		{
			name: "slash alone is an utterance",
			line: "/",
			want: Command{Kind: CmdSay, Message: "/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.line))
		})
	}
}
