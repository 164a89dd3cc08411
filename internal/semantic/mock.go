package semantic

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder is a deterministic in-process Embedder for tests and offline
// runs: the same text always produces the same unit vector. Behavior can be
// overridden through the function fields.
type MockEmbedder struct {
	Dim       int
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
}

// NewMockEmbedder creates a mock embedder with a 384-dimensional output.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 384}
}

// Dimension returns the configured vector length.
func (m *MockEmbedder) Dimension() int {
	return m.Dim
}

// Embed generates a deterministic vector from the FNV hash of text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return deterministicVector(text, m.Dim), nil
}

// EmbedBatch generates deterministic vectors for each text.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// deterministicVector hashes text into a pseudo-random unit vector.
func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	var sumSquares float64
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000.0
		sumSquares += float64(vec[i]) * float64(vec[i])
	}

	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vec {
			vec[i] *= norm
		}
	}
	return vec
}
