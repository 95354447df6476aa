package logger

import (
	"strings"
	"unicode"
)

const maxUserRunes = 64

// SafeUser makes a client-supplied username safe to place in a log line:
// control characters are dropped and the result is capped at 64 runes.
func SafeUser(username string) string {
	var b strings.Builder
	n := 0
	for _, r := range username {
		if unicode.IsControl(r) {
			continue
		}
		if n == maxUserRunes {
			b.WriteString("…")
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
