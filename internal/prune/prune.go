// Package prune cuts text down to the character budgets Discord enforces on
// message content and embed parts.
package prune

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Budgets in characters.
const (
	MessageContent   = 2000
	EmbedDescription = 4096
	EmbedFieldValue  = 1024
)

const Marker = "…"

func Exceeds(s string, maxRunes int) bool {
	return utf8.RuneCountInString(s) > maxRunes
}

// Fit returns s unchanged when it fits in maxRunes. Otherwise it keeps a
// prefix ending in Marker. The cut moves back to the last whitespace when that
// keeps at least half the budget, so a trailing link is dropped whole instead
// of being broken.
func Fit(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if !Exceeds(s, maxRunes) {
		return s
	}
	keep := maxRunes - utf8.RuneCountInString(Marker)
	if keep <= 0 {
		return prefixRunes(Marker, maxRunes)
	}

	head := prefixRunes(s, keep)
	if i := strings.LastIndexFunc(head, unicode.IsSpace); i >= 0 && utf8.RuneCountInString(head[:i]) >= keep/2 {
		head = head[:i]
	}
	return strings.TrimRightFunc(head, unicode.IsSpace) + Marker
}

func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
