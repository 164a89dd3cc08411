package pipeline

import (
	"context"
	"fmt"

	"github.com/zombar/plagiarismdetector/internal/models"
	"github.com/zombar/plagiarismdetector/internal/semantic"
)

// CheckBatch checks every document independently and additionally compares
// each pair of submitted documents by whole-document embedding similarity.
// The pairwise matrix is returned alongside the reports, never folded into
// any single one.
func (c *Checker) CheckBatch(ctx context.Context, docs []models.BatchDocument) (*models.BatchResult, error) {
	result := &models.BatchResult{}

	for _, doc := range docs {
		report, err := c.Check(ctx, doc.Name, doc.Text)
		if err != nil {
			return nil, fmt.Errorf("checking %q: %w", doc.Name, err)
		}
		result.Reports = append(result.Reports, report)
	}

	if c.embedder != nil && len(docs) > 1 {
		comparisons, err := c.compareDocuments(ctx, docs)
		if err != nil {
			// Pairwise comparison enriches the batch; its failure does not
			// invalidate the per-document reports.
			c.logger.Warn("pairwise comparison failed", "error", err)
		} else {
			result.Comparisons = comparisons
		}
	}
	return result, nil
}

func (c *Checker) compareDocuments(ctx context.Context, docs []models.BatchDocument) ([]models.PairSimilarity, error) {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}

	var pairs []models.PairSimilarity
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			pairs = append(pairs, models.PairSimilarity{
				NameA:      docs[i].Name,
				NameB:      docs[j].Name,
				Similarity: semantic.Cosine(vectors[i], vectors[j]),
			})
		}
	}
	return pairs, nil
}
