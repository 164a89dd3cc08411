// Package corpus retrieves external candidate documents for matching. Sources
// are queried concurrently and joined before any matching starts; a failing
// source degrades to an empty contribution, never to a pipeline error.
package corpus

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zombar/plagiarismdetector/internal/models"
)

// Source retrieves candidate documents for a query. query is the derived
// keyword signature joined with spaces; keywords are the individual tokens
// for sources that match per-token.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, keywords []string) ([]models.ExternalCandidate, error)
}

// FetchAll queries every source concurrently and joins the results in source
// order. Source failures are logged and contribute nothing; FetchAll itself
// never fails.
func FetchAll(ctx context.Context, sources []Source, query string, keywords []string) []models.ExternalCandidate {
	results := make([][]models.ExternalCandidate, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			candidates, err := src.Search(ctx, query, keywords)
			if err != nil {
				slog.Warn("corpus source unavailable, continuing without it",
					"source", src.Name(), "error", err)
				return nil
			}
			results[i] = candidates
			return nil
		})
	}
	g.Wait() // goroutines only return nil; Wait is a join

	var joined []models.ExternalCandidate
	for _, r := range results {
		joined = append(joined, r...)
	}
	return joined
}
