package models

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Source type values for external candidates
const (
	SourceTypeNews          = "news"
	SourceTypeAcademic      = "academic"
	SourceTypeTeacherUpload = "teacher_upload"
	SourceTypeOther         = "other"
)

// NewID returns a random UUIDv4-style identifier for reports and sources.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Sentence is a segment of the input document retained for matching.
// Sentences are immutable once produced by the segmenter.
type Sentence struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
}

// ExternalCandidate is a corpus document considered as a possible source of
// copied or paraphrased text. It is read-only during matching.
type ExternalCandidate struct {
	ID             string    `json:"id,omitempty"`
	Text           string    `json:"text"`
	NormalizedText string    `json:"-"` // filled by the pipeline before matching
	Title          string    `json:"title"`
	SourceURL      string    `json:"source_url"`
	SourceType     string    `json:"source_type"` // news, academic, teacher_upload, other
	Embedding      []float32 `json:"embedding,omitempty"`
}

// MatchDetail records one resolved match between a sentence (or phrase) and a
// candidate source. Immutable once created.
type MatchDetail struct {
	MatchedText string  `json:"matched_text"`
	Similarity  float64 `json:"similarity"` // 0..1
	SourceType  string  `json:"source_type"`
	SourceTitle string  `json:"source_title"`
	SourceURL   string  `json:"source_url"`
}

// Report is the persisted result of one check invocation. Never mutated after
// construction.
type Report struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Content       string        `json:"content"`
	CreatedAt     time.Time     `json:"created_at"`
	SimilarityPct float64       `json:"similarity"` // highest match similarity, 0..100
	Sources       []string      `json:"sources"`    // unique source titles
	WordCount     int           `json:"word_count"`
	TimeSpent     string        `json:"time_spent"` // H:MM:SS or MM:SS
	Flagged       bool          `json:"flagged"`
	Matches       []MatchDetail `json:"plagiarism_data"`
}

// BatchDocument is one document submitted to a batch check.
type BatchDocument struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// PairSimilarity is the whole-document embedding similarity between two
// submitted documents in a batch.
type PairSimilarity struct {
	NameA      string  `json:"name_a"`
	NameB      string  `json:"name_b"`
	Similarity float64 `json:"similarity"`
}

// BatchResult bundles the per-document reports of a batch check with the
// pairwise comparison matrix. The matrix is returned alongside the reports,
// never folded into any single one.
type BatchResult struct {
	Reports     []*Report        `json:"reports"`
	Comparisons []PairSimilarity `json:"comparisons"`
}
