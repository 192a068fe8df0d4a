package replies

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares text for keyword matching: Unicode NFC composition,
// case folding, and collapsing runs of whitespace to a single space.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	// Casers keep state; a fresh one per call keeps Normalize goroutine-safe.
	s = cases.Fold().String(s)
	return strings.TrimSpace(collapseWhitespace(s))
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
