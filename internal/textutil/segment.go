package textutil

import (
	"regexp"
	"strings"

	"github.com/zombar/plagiarismdetector/internal/models"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Sentences splits text into candidate sentences and keeps only those long
// enough to be evidentially useful: raw length >= minLength characters and at
// least minWords whitespace-delimited words. Shorter fragments are dropped
// silently. A document that yields no qualifying sentences returns an empty
// slice, not an error.
func Sentences(text string, minLength, minWords int) []models.Sentence {
	var raw []string
	locs := sentenceRe.FindAllStringIndex(text, -1)
	end := 0
	for _, loc := range locs {
		raw = append(raw, text[loc[0]:loc[1]])
		end = loc[1]
	}
	// Trailing fragment without a terminator still counts as a sentence.
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		raw = append(raw, tail)
	}

	var sentences []models.Sentence
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if len(s) < minLength {
			continue
		}
		if len(strings.Fields(s)) < minWords {
			continue
		}
		sentences = append(sentences, models.Sentence{
			Original:   s,
			Normalized: Normalize(s),
		})
	}
	return sentences
}
