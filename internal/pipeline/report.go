package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/zombar/plagiarismdetector/internal/models"
)

// finalize folds the resolved matches into the report: overall similarity as
// a percentage rounded to one decimal, the flag decision, the unique source
// titles in order of first appearance and the elapsed time.
func (c *Checker) finalize(report *models.Report, matches []models.MatchDetail, start time.Time) {
	report.Matches = matches

	var maxSim float64
	for _, m := range matches {
		if m.Similarity > maxSim {
			maxSim = m.Similarity
		}
	}
	report.SimilarityPct = math.Round(maxSim*1000) / 10
	report.Flagged = report.SimilarityPct > c.cfg.FlagThresholdPct

	seen := make(map[string]bool)
	for _, m := range matches {
		if m.SourceTitle == "" || seen[m.SourceTitle] {
			continue
		}
		seen[m.SourceTitle] = true
		report.Sources = append(report.Sources, m.SourceTitle)
	}

	report.TimeSpent = formatElapsed(time.Since(start))
}

// formatElapsed renders a duration as H:MM:SS, or MM:SS when under an hour.
func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
