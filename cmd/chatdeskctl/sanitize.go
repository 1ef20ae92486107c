package main

import (
	"strings"
	"unicode"
)

// terminalSafe prepares message text for a one-line listing. Control
// characters, including the ESC of terminal escape sequences, are dropped
// and line breaks become spaces. Emoji modifiers that terminals draw as
// separate cells are dropped too.
func terminalSafe(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r), isEmojiModifier(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isEmojiModifier(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF: // variation selectors
		return true
	default:
		return false
	}
}
