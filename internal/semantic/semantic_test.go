package semantic

import (
	"context"
	"math"
	"testing"

	"github.com/zombar/plagiarismdetector/internal/models"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"both empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("Cosine = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestRank(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := []models.ExternalCandidate{
		{ID: "far", Embedding: []float32{0, 1, 0}},
		{ID: "near", Embedding: []float32{1, 0.1, 0}},
		{ID: "no-embedding"},
		{ID: "middle", Embedding: []float32{1, 1, 0}},
	}

	ranked := Rank(query, candidates, 10)

	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked candidates (one excluded), got %d", len(ranked))
	}
	if ranked[0].Candidate.ID != "near" {
		t.Errorf("expected 'near' first, got %q", ranked[0].Candidate.ID)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Similarity > ranked[i-1].Similarity {
			t.Errorf("ranking not descending at %d", i)
		}
	}
}

func TestRankTopK(t *testing.T) {
	query := []float32{1, 0}
	var candidates []models.ExternalCandidate
	for i := 0; i < 30; i++ {
		candidates = append(candidates, models.ExternalCandidate{Embedding: []float32{1, float32(i)}})
	}

	if got := Rank(query, candidates, 5); len(got) != 5 {
		t.Errorf("expected topK truncation to 5, got %d", len(got))
	}
	// Non-positive topK falls back to the default.
	if got := Rank(query, candidates, 0); len(got) != DefaultTopK {
		t.Errorf("expected default topK %d, got %d", DefaultTopK, len(got))
	}
}

func TestModelBlankInput(t *testing.T) {
	m := NewModel(NewMockEmbedder())

	vec, err := m.Embed(context.Background(), "   \t\n")
	if err != nil {
		t.Fatalf("blank input must not error: %v", err)
	}
	if len(vec) != m.Dimension() {
		t.Fatalf("expected zero vector of dimension %d, got %d", m.Dimension(), len(vec))
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatal("blank input must embed to the zero vector")
		}
	}
}

func TestModelEmbedBatchMixedBlanks(t *testing.T) {
	m := NewModel(NewMockEmbedder())

	vecs, err := m.EmbedBatch(context.Background(), []string{"real text", "", "more text"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if Cosine(vecs[0], vecs[0]) != 1.0 {
		t.Error("non-blank entry should embed to a non-zero vector")
	}
	for _, v := range vecs[1] {
		if v != 0 {
			t.Fatal("blank entry must map to the zero vector")
		}
	}
}

func TestMockEmbedderDeterminism(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "the same input text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "the same input text")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(Cosine(a, b)-1.0) > 1e-6 {
		t.Error("identical inputs must produce identical embeddings")
	}

	c, err := e.Embed(ctx, "completely different content")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(Cosine(a, c)-1.0) < 1e-6 {
		t.Error("different inputs should produce different embeddings")
	}
}
