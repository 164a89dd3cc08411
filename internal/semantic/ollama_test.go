package semantic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestOllamaEmbedderConcurrentUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(server.URL, "nomic-embed-text")
	if err != nil {
		t.Fatalf("NewOllamaEmbedder: %v", err)
	}

	// Embed refines the dimension while Dimension is read from other
	// goroutines; run under -race.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Embed(context.Background(), "some text to embed"); err != nil {
				t.Errorf("Embed: %v", err)
			}
			_ = e.Dimension()
		}()
	}
	wg.Wait()

	if e.Dimension() != 3 {
		t.Errorf("expected dimension refined to 3, got %d", e.Dimension())
	}
}
