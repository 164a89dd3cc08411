package match

import (
	"math"
	"regexp"
	"strings"
)

// tfidfTokenRe requires tokens of at least two alphabetic characters.
var tfidfTokenRe = regexp.MustCompile(`[A-Za-z]{2,}`)

// TFIDFCosine builds a two-document TF-IDF vector space over exactly the two
// strings being compared and returns the cosine similarity of the resulting
// vectors. Term frequencies are raw counts, idf is smoothed
// (ln((1+n)/(1+df))+1 with n=2) and vectors are l2-normalized. Degenerate
// input (nothing left after tokenization) scores 0.
func TFIDFCosine(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	tfA := termFrequencies(a)
	tfB := termFrequencies(b)
	if len(tfA) == 0 || len(tfB) == 0 {
		return 0
	}

	// document frequency over the two-document corpus
	vocab := make(map[string]int, len(tfA)+len(tfB))
	for term := range tfA {
		vocab[term]++
	}
	for term := range tfB {
		vocab[term]++
	}

	idf := func(df int) float64 {
		return math.Log(3.0/float64(1+df)) + 1 // (1+n)/(1+df) with n=2
	}

	var dot, normA, normB float64
	for term, df := range vocab {
		w := idf(df)
		wa := float64(tfA[term]) * w
		wb := float64(tfB[term]) * w
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// termFrequencies counts qualifying tokens in lower-cased text.
func termFrequencies(text string) map[string]int {
	tokens := tfidfTokenRe.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		return nil
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}
