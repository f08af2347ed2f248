// Package sanitize cleans free text coming in from the messaging
// provider before it is stored or echoed back to operators.
package sanitize

import (
	"strings"
	"unicode"
)

// Text normalizes user-provided message text: control characters are
// dropped, runs of whitespace collapse to a single space, and the
// result is trimmed. Message bodies pass through here before they are
// saved as answers or shown in operator alerts.
func Text(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r):
			// skip
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Name cleans a contact display name and caps it at max runes. Provider
// profiles carry arbitrary user-chosen names, so the cap keeps them
// inside the column width.
func Name(s string, max int) string {
	cleaned := Text(s)
	runes := []rune(cleaned)
	if max > 0 && len(runes) > max {
		cleaned = strings.TrimSpace(string(runes[:max]))
	}
	return cleaned
}
