// Package match implements sentence-level lexical matching: literal substring
// detection, a character-sequence ratio gate and a statistical TF-IDF
// confirmation over individual candidate texts.
package match

import (
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/zombar/plagiarismdetector/internal/textutil"
)

// phraseWindow is the fixed sliding-window width, in words, for partial
// phrase matching.
const phraseWindow = 5

// Config holds the lexical matching thresholds.
type Config struct {
	// MinSentenceLength is the minimum normalized length, in characters,
	// for a sentence or phrase to produce match evidence.
	MinSentenceLength int
	// SequenceRatioThreshold gates the expensive TF-IDF comparison: the
	// cheap character-sequence ratio must reach it first.
	SequenceRatioThreshold float64
	// TFIDFThreshold is the minimum TF-IDF cosine similarity for a
	// near-match to count.
	TFIDFThreshold float64
	// ExactMatchScore is the similarity reported for literal substring hits.
	ExactMatchScore float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinSentenceLength:      15,
		SequenceRatioThreshold: 0.75,
		TFIDFThreshold:         0.1,
		ExactMatchScore:        1.0,
	}
}

// Matcher compares one sentence against one candidate text at a time. It is
// stateless and safe for concurrent use.
type Matcher struct {
	cfg Config
}

// New creates a Matcher with the given thresholds.
func New(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// ExactMatch determines whether sentence is copied (or nearly copied) from
// candidateText. Both sides are normalized first. A literal substring hit
// returns the configured exact-match score. Otherwise a character-sequence
// ratio gate must clear before the TF-IDF cosine similarity is computed and
// returned, and only if it clears its own threshold. The two-gate order keeps
// the dominant TF-IDF cost off the common dissimilar path.
func (m *Matcher) ExactMatch(sentence, candidateText string) (float64, bool) {
	return m.ExactMatchNormalized(textutil.Normalize(sentence), textutil.Normalize(candidateText))
}

// ExactMatchNormalized is ExactMatch over inputs that are already normalized.
func (m *Matcher) ExactMatchNormalized(sentence, candidate string) (float64, bool) {
	if len(sentence) < m.cfg.MinSentenceLength {
		return 0, false
	}

	if strings.Contains(candidate, sentence) {
		return m.cfg.ExactMatchScore, true
	}

	if SequenceRatio(sentence, candidate) >= m.cfg.SequenceRatioThreshold {
		if sim := TFIDFCosine(sentence, candidate); sim >= m.cfg.TFIDFThreshold {
			return sim, true
		}
	}

	return 0, false
}

// PartialPhraseMatch slides a fixed five-word window across the normalized
// sentence and returns the first window that appears verbatim in the
// normalized candidate, scored by TF-IDF cosine similarity against the whole
// candidate. Windows are not exhaustively scored; the first literal hit wins.
// Sentences with fewer than five words cannot produce a partial match.
func (m *Matcher) PartialPhraseMatch(sentence, candidateText string) (string, float64, bool) {
	return m.PartialPhraseMatchNormalized(textutil.Normalize(sentence), textutil.Normalize(candidateText))
}

// PartialPhraseMatchNormalized is PartialPhraseMatch over inputs that are
// already normalized.
func (m *Matcher) PartialPhraseMatchNormalized(sentence, candidate string) (string, float64, bool) {
	words := strings.Fields(sentence)
	if len(words) < phraseWindow {
		return "", 0, false
	}

	for i := 0; i+phraseWindow <= len(words); i++ {
		phrase := strings.Join(words[i:i+phraseWindow], " ")
		if len(phrase) < m.cfg.MinSentenceLength {
			continue
		}
		if strings.Contains(candidate, phrase) {
			return phrase, TFIDFCosine(phrase, candidate), true
		}
	}

	return "", 0, false
}

// SequenceRatio is the character-level longest-matching-blocks ratio of two
// strings: 2*LCS / (len(a)+len(b)), in [0,1]. It is the cheap first gate in
// front of TF-IDF vectorization.
func SequenceRatio(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la+lb == 0 {
		return 0
	}
	lcs := edlib.LCS(a, b)
	return 2 * float64(lcs) / float64(la+lb)
}
