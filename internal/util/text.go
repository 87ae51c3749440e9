package util

import (
	"strings"
	"unicode"
)

// NormalizeText canonicalizes raw input before caching and analysis:
// invalid UTF-8 sequences and NUL bytes are dropped, every whitespace run
// collapses to a single space, and the result is trimmed. Identical inputs
// always normalize to identical outputs, which keeps cache keys stable.
func NormalizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")

	var b strings.Builder
	b.Grow(len(sanitized))
	pendingSpace := false
	for _, r := range sanitized {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Excerpt shortens s to at most n runes for log output.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
