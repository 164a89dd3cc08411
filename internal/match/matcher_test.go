package match

import (
	"math"
	"strings"
	"testing"
)

func TestExactMatchSubstring(t *testing.T) {
	m := New(DefaultConfig())

	sentence := "The quick brown fox jumps over the lazy dog."
	candidate := "Some filler text. The quick brown fox jumps over the lazy dog. More filler."

	sim, ok := m.ExactMatch(sentence, candidate)
	if !ok {
		t.Fatal("expected a match for a verbatim substring")
	}
	if sim != 1.0 {
		t.Errorf("expected exact-match score 1.0, got %f", sim)
	}
}

func TestExactMatchIgnoresCaseAndPunctuation(t *testing.T) {
	m := New(DefaultConfig())

	sim, ok := m.ExactMatch(
		"THE QUICK BROWN FOX, JUMPS OVER THE LAZY DOG!",
		"the quick brown fox jumps over the lazy dog",
	)
	if !ok || sim != 1.0 {
		t.Errorf("normalization should make these identical, got (%f, %v)", sim, ok)
	}
}

func TestExactMatchNonLatinScript(t *testing.T) {
	m := New(DefaultConfig())

	// A verbatim copy must score 1.0 regardless of script.
	sentence := "Это предложение скопировано дословно из другого источника."
	sim, ok := m.ExactMatch(sentence, sentence)
	if !ok {
		t.Fatal("expected a verbatim non-Latin copy to match")
	}
	if sim != 1.0 {
		t.Errorf("expected exact-match score 1.0, got %f", sim)
	}
}

func TestExactMatchShortSentence(t *testing.T) {
	m := New(DefaultConfig())

	// Below the minimum sentence length: no evidence regardless of content.
	if sim, ok := m.ExactMatch("short", "short"); ok {
		t.Errorf("short sentence must not match, got %f", sim)
	}
}

func TestExactMatchDissimilar(t *testing.T) {
	m := New(DefaultConfig())

	sim, ok := m.ExactMatch(
		"Photosynthesis converts sunlight into chemical energy inside chloroplasts.",
		"Quarterly revenue projections exceeded analyst expectations this fiscal year.",
	)
	if ok {
		t.Errorf("dissimilar sentences must not match, got %f", sim)
	}
}

func TestExactMatchNearCopy(t *testing.T) {
	m := New(DefaultConfig())

	// One word changed in a long sentence: the sequence-ratio gate clears and
	// TF-IDF confirms.
	sentence := "the industrial revolution transformed european society in fundamental and lasting ways"
	candidate := "the industrial revolution transformed european culture in fundamental and lasting ways"

	sim, ok := m.ExactMatchNormalized(sentence, candidate)
	if !ok {
		t.Fatal("expected near-copy to match")
	}
	if sim <= 0 || sim > 1 {
		t.Errorf("similarity out of range: %f", sim)
	}
}

func TestPartialPhraseMatch(t *testing.T) {
	m := New(DefaultConfig())

	sentence := "My essay opens by noting that climate change threatens coastal cities and then moves on."
	candidate := "Recent reporting shows that climate change threatens coastal cities around the world."

	phrase, sim, ok := m.PartialPhraseMatch(sentence, candidate)
	if !ok {
		t.Fatal("expected a shared five-word phrase to be found")
	}
	if len(strings.Fields(phrase)) != 5 {
		t.Errorf("expected a five-word phrase, got %q", phrase)
	}
	if sim <= 0 {
		t.Errorf("expected positive phrase similarity, got %f", sim)
	}
}

func TestPartialPhraseMatchTooFewWords(t *testing.T) {
	m := New(DefaultConfig())

	if _, _, ok := m.PartialPhraseMatch("only four words here", "only four words here and more"); ok {
		t.Error("sentences under five words must not produce partial matches")
	}
}

func TestPartialPhraseMatchNoSharedPhrase(t *testing.T) {
	m := New(DefaultConfig())

	_, _, ok := m.PartialPhraseMatch(
		"entirely original phrasing composed for this particular unit test case",
		"completely different material with no overlapping word sequences at all",
	)
	if ok {
		t.Error("no shared phrase should mean no partial match")
	}
}

func TestSequenceRatio(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "abcdef", "abcdef", 1.0},
		{"disjoint", "aaa", "bbb", 0.0},
		{"both empty", "", "", 0.0},
		{"half shared", "ab", "abcd", 2.0 * 2 / 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SequenceRatio(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("SequenceRatio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestTFIDFCosine(t *testing.T) {
	if sim := TFIDFCosine("the cat sat on the mat", "the cat sat on the mat"); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("identical texts should score 1.0, got %f", sim)
	}

	if sim := TFIDFCosine("alpha beta gamma", "delta epsilon zeta"); sim != 0 {
		t.Errorf("disjoint vocabularies should score 0, got %f", sim)
	}

	if sim := TFIDFCosine("", "anything at all"); sim != 0 {
		t.Errorf("empty input should score 0, got %f", sim)
	}

	partial := TFIDFCosine("cats chase mice daily", "cats chase birds daily")
	if partial <= 0 || partial >= 1 {
		t.Errorf("partial overlap should land strictly between 0 and 1, got %f", partial)
	}
}

func TestTFIDFCosineSymmetric(t *testing.T) {
	a := "renewable energy adoption is accelerating worldwide"
	b := "worldwide energy consumption keeps accelerating"
	if x, y := TFIDFCosine(a, b), TFIDFCosine(b, a); math.Abs(x-y) > 1e-12 {
		t.Errorf("cosine must be symmetric: %f vs %f", x, y)
	}
}
