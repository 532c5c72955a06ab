package stringutil

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FormatTime returns formatted time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.RFC3339)
}

// ParseTime parses time string.
func ParseTime(val string) (time.Time, error) {
	if val == "" || val == "-" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.RFC3339, val, time.Local)
}

// TruncString returns truncated string.
func TruncString(val string, max int) string {
	if len(val) > max {
		return val[:max]
	}
	return val
}

// NormalizeText canonicalizes free-form text before hashing or comparison.
// It applies Unicode NFC normalization, trims surrounding whitespace and
// collapses internal whitespace runs to a single space, so that two inputs
// that render identically hash identically.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
