package textutil

import (
	"regexp"
	"sort"
	"strings"
)

var alphaTokenRe = regexp.MustCompile(`[a-zA-Z]+`)

// queryFallbackLength is the raw-text prefix used when no keywords survive
// filtering. The corpus query must never be empty for a non-empty document.
const queryFallbackLength = 100

// Keywords returns up to max of the most frequent tokens in text that are
// purely alphabetic, not stopwords and longer than 3 characters. Frequency
// ties are broken by first occurrence.
func Keywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	tokens := alphaTokenRe.FindAllString(strings.ToLower(text), -1)

	type tokenStat struct {
		token string
		count int
		first int
	}
	seen := make(map[string]*tokenStat)
	var order []*tokenStat
	for i, tok := range tokens {
		if len(tok) <= 3 || stopWords[tok] {
			continue
		}
		if st, ok := seen[tok]; ok {
			st.count++
			continue
		}
		st := &tokenStat{token: tok, count: 1, first: i}
		seen[tok] = st
		order = append(order, st)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) > max {
		order = order[:max]
	}
	result := make([]string, len(order))
	for i, st := range order {
		result[i] = st.token
	}
	return result
}

// Query derives the corpus query signature for a document: the joined top
// keywords, or a fixed-length prefix of the raw text when nothing survives
// keyword filtering.
func Query(text string, maxKeywords int) string {
	if kws := Keywords(text, maxKeywords); len(kws) > 0 {
		return strings.Join(kws, " ")
	}
	runes := []rune(text)
	if len(runes) > queryFallbackLength {
		runes = runes[:queryFallbackLength]
	}
	return strings.TrimSpace(string(runes))
}
