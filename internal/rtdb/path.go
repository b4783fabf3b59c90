package rtdb

import (
	"fmt"
	"strings"
	"unicode"
)

// split parses a path into segments. Empty segments are ignored, so "",
// "/" and "//" all address the root.
func split(path string) ([]string, error) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		if strings.ContainsAny(s, ".#$[]") || strings.IndexFunc(s, unicode.IsControl) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		segs = append(segs, s)
	}
	return segs, nil
}

func join(segs []string) string {
	return strings.Join(segs, "/")
}

// Join builds a path from segments.
func Join(segs ...string) string {
	var parts []string
	for _, s := range segs {
		if t := strings.Trim(s, "/"); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "/")
}

// overlaps reports whether one path is an ancestor of, descendant of, or
// equal to the other.
func overlaps(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
