package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal drops codepoints that tcell measures wrongly: skin
// tone modifiers, the zero width joiner and variation selectors. Composite
// emoji fall back to their base glyph. Control characters other than
// newline and tab are dropped too, since message text comes from the other
// user.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if isProblematicRune(r) {
			return -1
		}
		return r
	}, s)
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	case r == '\n' || r == '\t':
		return false
	default:
		return unicode.IsControl(r)
	}
}
