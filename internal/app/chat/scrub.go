/*
Package chat contains the core logic of the chat service.

This file implements destructive-backspace emulation for raw terminal input:
a printable character followed by a backspace or delete control code is
erased, and any remaining bare backspace/delete codes are stripped.
*/
package chat

import "unicode"

const (
	backspaceRune = '\b'
	deleteRune    = 0x7f
)

// scrubBackspaces applies destructive backspacing to one inbound line.
// "ab<DEL>c" reduces to "ac"; a leading bare delete code is stripped with no
// effect. Only printable characters are erased by a backspace.
func scrubBackspaces(line string) string {
	out := make([]rune, 0, len(line))

	for _, r := range line {
		if r == backspaceRune || r == deleteRune {
			if n := len(out); n > 0 && unicode.IsPrint(out[n-1]) {
				out = out[:n-1]
			}
			continue
		}

		out = append(out, r)
	}

	return string(out)
}
