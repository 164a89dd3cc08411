// Package semantic provides dense-vector embedding of documents and cosine
// ranking of corpus candidates, used to widen recall beyond literal and
// statistical lexical matching.
package semantic

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/zombar/plagiarismdetector/internal/models"
)

// DefaultTopK bounds the semantic candidate shortlist.
const DefaultTopK = 20

// Embedder generates fixed-length dense vectors from text. Implementations
// must be deterministic for identical input and safe for concurrent use.
type Embedder interface {
	// Embed generates the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts in one call, in input
	// order. Batching is preferred over repeated Embed calls for throughput.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the output vector length, needed for the guaranteed-shape
	// zero-vector fallback.
	Dimension() int
}

// Model wraps an Embedder with the degenerate-input contract: empty or
// whitespace-only text embeds to a zero vector of the model dimension instead
// of reaching the backend. A single Model instance is constructed at process
// start and injected into every component that embeds.
type Model struct {
	embedder Embedder
}

// NewModel wraps an embedding backend.
func NewModel(embedder Embedder) *Model {
	return &Model{embedder: embedder}
}

// Dimension returns the backend's output vector length.
func (m *Model) Dimension() int {
	return m.embedder.Dimension()
}

// Embed returns the embedding for text, or a zero vector for blank input.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, m.embedder.Dimension()), nil
	}
	return m.embedder.Embed(ctx, text)
}

// EmbedBatch embeds texts in input order. Blank entries become zero vectors
// without being sent to the backend.
func (m *Model) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, m.embedder.Dimension())
			continue
		}
		pending = append(pending, t)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	vecs, err := m.embedder.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[pendingIdx[j]] = vec
	}
	return out, nil
}

// Cosine returns the cosine similarity of two vectors in [-1,1]. Vectors of
// mismatched length or zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ScoredCandidate pairs a corpus candidate with its similarity to a query
// embedding.
type ScoredCandidate struct {
	Candidate  models.ExternalCandidate
	Similarity float64
}

// Rank scores candidates against a query embedding and returns at most topK
// of them in descending similarity order. Candidates without a stored
// embedding are excluded from ranking rather than scored as zero.
func Rank(query []float32, candidates []models.ExternalCandidate, topK int) []ScoredCandidate {
	if topK <= 0 {
		topK = DefaultTopK
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		scored = append(scored, ScoredCandidate{
			Candidate:  c,
			Similarity: Cosine(query, c.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
