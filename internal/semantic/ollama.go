package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaModel   = "nomic-embed-text"
	DefaultOllamaTimeout = 120 * time.Second

	// defaultOllamaDimension matches nomic-embed-text. Overridden by the
	// first successful embed if the served model differs.
	defaultOllamaDimension = 768
)

// OllamaEmbedder generates embeddings through the Ollama embed API.
type OllamaEmbedder struct {
	client  *api.Client
	model   string
	timeout time.Duration
	// dim is read concurrently with embed requests that refine it.
	dim    atomic.Int32
	logger *slog.Logger
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server.
func NewOllamaEmbedder(ollamaURL, model string) (*OllamaEmbedder, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	e := &OllamaEmbedder{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultOllamaTimeout,
		logger:  slog.Default().With("component", "ollama-embedder"),
	}
	e.dim.Store(defaultOllamaDimension)
	return e, nil
}

// Dimension returns the embedding vector length.
func (e *OllamaEmbedder) Dimension() int {
	return int(e.dim.Load())
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		e.logger.Error("embedding request failed", "model", e.model, "count", len(texts), "error", err)
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding result mismatch: expected %d, received %d", len(texts), len(resp.Embeddings))
	}

	if len(resp.Embeddings) > 0 && len(resp.Embeddings[0]) > 0 {
		e.dim.Store(int32(len(resp.Embeddings[0])))
	}
	return resp.Embeddings, nil
}
