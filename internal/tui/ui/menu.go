package ui

import (
	"fmt"
	"strings"
)

// FormatHints renders hints on one line as "<key> description" pairs.
func FormatHints(theme *Theme, hints []MenuHint) string {
	keyColor := Tag(theme.MenuKeyColor)
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, fmt.Sprintf("[%s::b]<%s>[-:-:-] %s", keyColor, h.Key, h.Description))
	}
	return strings.Join(parts, "  ")
}
