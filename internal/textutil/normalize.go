package textutil

import (
	"regexp"
	"strings"
)

var (
	// Word characters are Unicode letters and digits plus underscore, so
	// non-Latin text survives normalization intact.
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes text for comparison: lower-cases, replaces every
// character outside the word/whitespace class with a single space, collapses
// whitespace runs and trims. Idempotent.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// WordCount counts whitespace-delimited tokens in raw text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
