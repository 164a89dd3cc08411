package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// defaultOpenAIDimension matches all-MiniLM-L6-v2 style sentence embedders
// commonly served behind OpenAI-compatible endpoints.
const defaultOpenAIDimension = 384

// OpenAIEmbedder generates embeddings through any OpenAI-compatible
// embeddings API, including locally hosted ones.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	// dim is read concurrently with embed requests that refine it.
	dim    atomic.Int32
	logger *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible endpoint.
// An empty token is replaced with "none" for local services that don't
// require authentication.
func NewOpenAIEmbedder(baseURL, model, token string, dim int) (*OpenAIEmbedder, error) {
	if token == "" {
		token = "none"
	}
	if dim <= 0 {
		dim = defaultOpenAIDimension
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	e := &OpenAIEmbedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}
	e.dim.Store(int32(dim))
	return e, nil
}

// Dimension returns the embedding vector length.
func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dim.Load())
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no embeddings")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "error", err)
		return nil, err
	}
	if len(vecs) > 0 && len(vecs[0]) > 0 {
		e.dim.Store(int32(len(vecs[0])))
	}
	return vecs, nil
}
