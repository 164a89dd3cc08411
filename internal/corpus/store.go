package corpus

import (
	"context"
	"fmt"

	"github.com/zombar/plagiarismdetector/internal/database"
	"github.com/zombar/plagiarismdetector/internal/models"
)

const defaultStoreLimit = 10

// StoreSource serves candidates out of the local source store using the
// full-text index, falling back to substring search when the index yields
// nothing.
type StoreSource struct {
	db    *database.DB
	limit int
}

func NewStoreSource(db *database.DB) *StoreSource {
	return &StoreSource{db: db, limit: defaultStoreLimit}
}

func (s *StoreSource) Name() string { return "store" }

func (s *StoreSource) Search(_ context.Context, query string, keywords []string) ([]models.ExternalCandidate, error) {
	if len(keywords) == 0 {
		// Degenerate documents carry no keywords; probe for the raw query
		// prefix instead so the stored corpus still participates.
		candidates, err := s.db.SearchSourcesSubstring(query, s.limit)
		if err != nil {
			return nil, fmt.Errorf("searching source store: %w", err)
		}
		return candidates, nil
	}
	candidates, err := s.db.SearchSources(keywords, s.limit)
	if err != nil {
		return nil, fmt.Errorf("searching source store: %w", err)
	}
	return candidates, nil
}
