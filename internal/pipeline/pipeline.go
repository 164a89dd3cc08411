// Package pipeline orchestrates a plagiarism check: segmenting the input,
// gathering candidate documents, running the per-sentence lexical (and
// optionally semantic) matching and aggregating the results into a report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/zombar/plagiarismdetector/internal/corpus"
	"github.com/zombar/plagiarismdetector/internal/database"
	"github.com/zombar/plagiarismdetector/internal/match"
	"github.com/zombar/plagiarismdetector/internal/models"
	"github.com/zombar/plagiarismdetector/internal/semantic"
	"github.com/zombar/plagiarismdetector/internal/textutil"
	"github.com/zombar/plagiarismdetector/pkg/metrics"
)

// Config carries the tunable thresholds of a check.
type Config struct {
	MinWordsPerSentence     int
	MinSentenceLength       int
	SequenceRatioThreshold  float64
	TFIDFThreshold          float64
	ExactMatchScore         float64
	SemanticTopK            int
	SemanticAcceptanceFloor float64
	FlagThresholdPct        float64
	// MaxKeywords bounds the corpus query signature.
	MaxKeywords int
	// SemanticScanLimit bounds how many stored sources are loaded for
	// semantic shortlisting per check.
	SemanticScanLimit int
	// Workers sizes the sentence-matching pool.
	Workers int
}

// DefaultConfig returns the stock check configuration.
func DefaultConfig() Config {
	return Config{
		MinWordsPerSentence:     5,
		MinSentenceLength:       15,
		SequenceRatioThreshold:  0.75,
		TFIDFThreshold:          0.1,
		ExactMatchScore:         1.0,
		SemanticTopK:            semantic.DefaultTopK,
		SemanticAcceptanceFloor: 0.6,
		FlagThresholdPct:        70,
		MaxKeywords:             5,
		SemanticScanLimit:       500,
		Workers:                 8,
	}
}

func (c Config) matchConfig() match.Config {
	return match.Config{
		MinSentenceLength:      c.MinSentenceLength,
		SequenceRatioThreshold: c.SequenceRatioThreshold,
		TFIDFThreshold:         c.TFIDFThreshold,
		ExactMatchScore:        c.ExactMatchScore,
	}
}

// Checker runs plagiarism checks against a set of corpus sources. When an
// embedder is configured, stored sources are additionally shortlisted by
// embedding similarity. Safe for concurrent use.
type Checker struct {
	cfg      Config
	sources  []corpus.Source
	matcher  *match.Matcher
	embedder *semantic.Model
	store    *database.DB
	pool     *ants.Pool
	logger   *slog.Logger
	metrics  *metrics.BusinessMetrics
}

// Option configures a Checker.
type Option func(*Checker)

// WithEmbedder enables semantic shortlisting of stored sources.
func WithEmbedder(m *semantic.Model) Option {
	return func(c *Checker) { c.embedder = m }
}

// WithStore enables report persistence and the stored-source corpus.
func WithStore(db *database.DB) Option {
	return func(c *Checker) { c.store = db }
}

// WithMetrics attaches the business instruments.
func WithMetrics(m *metrics.BusinessMetrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// New creates a Checker. The sentence-matching worker pool lives for the
// checker's lifetime; call Close to release it.
func New(cfg Config, sources []corpus.Source, opts ...Option) (*Checker, error) {
	pool, err := ants.NewPool(cfg.Workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	c := &Checker{
		cfg:     cfg,
		sources: sources,
		matcher: match.New(cfg.matchConfig()),
		pool:    pool,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the worker pool.
func (c *Checker) Close() {
	c.pool.Release()
}

// Check runs a full plagiarism check over one document and returns the
// persisted report. The check always terminates with a report; collaborator
// failures reduce the candidate set instead of failing the check.
func (c *Checker) Check(ctx context.Context, name, text string) (*models.Report, error) {
	return c.CheckWithID(ctx, models.NewID(), name, text)
}

// CheckWithID is Check with a caller-assigned report ID, so asynchronous
// submissions can hand out the ID before the check finishes.
func (c *Checker) CheckWithID(ctx context.Context, id, name, text string) (*models.Report, error) {
	start := time.Now()
	status := "completed"
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveDurationWithExemplar(ctx, c.metrics.CheckDuration,
				time.Since(start).Seconds(), status)
			c.metrics.ChecksTotal.WithLabelValues(status).Inc()
		}
	}()

	report := &models.Report{
		ID:        id,
		Name:      name,
		Content:   text,
		CreatedAt: time.Now().UTC(),
		WordCount: textutil.WordCount(text),
	}

	sentences := textutil.Sentences(text, c.cfg.MinSentenceLength, c.cfg.MinWordsPerSentence)
	if len(sentences) == 0 {
		c.logger.Info("no sentences qualified for matching", "report_id", report.ID)
		c.finalize(report, nil, start)
		return report, c.persist(report, &status)
	}

	candidates := c.gatherCandidates(ctx, text)
	if len(candidates) == 0 {
		c.logger.Info("no candidate sources found", "report_id", report.ID)
		c.finalize(report, nil, start)
		return report, c.persist(report, &status)
	}

	matches := c.matchSentences(sentences, candidates)
	c.finalize(report, matches, start)

	if c.metrics != nil {
		c.metrics.MatchesFound.Add(float64(len(report.Matches)))
	}
	c.logger.Info("check complete",
		"report_id", report.ID,
		"sentences", len(sentences),
		"candidates", len(candidates),
		"matches", len(report.Matches),
		"similarity_pct", report.SimilarityPct,
		"flagged", report.Flagged,
	)
	return report, c.persist(report, &status)
}

// gatherCandidates joins the corpus fetch with the semantic shortlist and
// prepares candidate texts for matching.
func (c *Checker) gatherCandidates(ctx context.Context, text string) []models.ExternalCandidate {
	query := textutil.Query(text, c.cfg.MaxKeywords)
	keywords := textutil.Keywords(text, c.cfg.MaxKeywords)

	sources := c.sources
	if c.metrics != nil {
		sources = instrumentSources(sources, c.metrics)
	}
	candidates := corpus.FetchAll(ctx, sources, query, keywords)
	candidates = append(candidates, c.semanticShortlist(ctx, text)...)

	seen := make(map[string]bool)
	prepared := candidates[:0]
	for _, cand := range candidates {
		if cand.Text == "" {
			continue
		}
		if cand.ID != "" {
			if seen[cand.ID] {
				continue
			}
			seen[cand.ID] = true
		}
		cand.NormalizedText = textutil.Normalize(cand.Text)
		prepared = append(prepared, cand)
	}
	return prepared
}

// semanticShortlist ranks stored sources by embedding similarity to the whole
// document and keeps those above the acceptance floor.
func (c *Checker) semanticShortlist(ctx context.Context, text string) []models.ExternalCandidate {
	if c.embedder == nil || c.store == nil {
		return nil
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		c.logger.Warn("document embedding failed, skipping semantic shortlist", "error", err)
		if c.metrics != nil {
			c.metrics.EmbeddingsTotal.WithLabelValues("error").Inc()
		}
		return nil
	}
	if c.metrics != nil {
		c.metrics.EmbeddingsTotal.WithLabelValues("ok").Inc()
	}

	stored, err := c.store.ListSourcesWithEmbeddings(c.cfg.SemanticScanLimit)
	if err != nil {
		c.logger.Warn("loading stored sources failed, skipping semantic shortlist", "error", err)
		return nil
	}

	ranked := semantic.Rank(vec, stored, c.cfg.SemanticTopK)
	var accepted []models.ExternalCandidate
	for _, sc := range ranked {
		if sc.Similarity > c.cfg.SemanticAcceptanceFloor {
			accepted = append(accepted, sc.Candidate)
		}
	}
	return accepted
}

// matchSentences runs the per-sentence matching concurrently and reassembles
// results in input order. Each sentence resolves independently so a shared
// result set never has to be locked across workers.
func (c *Checker) matchSentences(sentences []models.Sentence, candidates []models.ExternalCandidate) []models.MatchDetail {
	results := make([]*models.MatchDetail, len(sentences))

	var wg sync.WaitGroup
	for i, s := range sentences {
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			results[i] = c.matchSentence(s, candidates)
		})
		if err != nil {
			// Pool rejected the task; match inline rather than drop the sentence.
			results[i] = c.matchSentence(s, candidates)
			wg.Done()
		}
	}
	wg.Wait()

	var matches []models.MatchDetail
	for _, r := range results {
		if r != nil {
			matches = append(matches, *r)
		}
	}
	return matches
}

// matchSentence resolves one sentence against the candidates: an exact pass in
// candidate order, then a partial-phrase pass. The first hit wins.
func (c *Checker) matchSentence(s models.Sentence, candidates []models.ExternalCandidate) *models.MatchDetail {
	for _, cand := range candidates {
		if sim, ok := c.matcher.ExactMatchNormalized(s.Normalized, cand.NormalizedText); ok {
			return &models.MatchDetail{
				MatchedText: s.Original,
				Similarity:  roundScore(sim),
				SourceType:  cand.SourceType,
				SourceTitle: cand.Title,
				SourceURL:   cand.SourceURL,
			}
		}
	}
	for _, cand := range candidates {
		if phrase, sim, ok := c.matcher.PartialPhraseMatchNormalized(s.Normalized, cand.NormalizedText); ok {
			return &models.MatchDetail{
				MatchedText: phrase,
				Similarity:  roundScore(sim),
				SourceType:  cand.SourceType,
				SourceTitle: cand.Title,
				SourceURL:   cand.SourceURL,
			}
		}
	}
	return nil
}

// roundScore trims match similarities to three decimals for the report.
func roundScore(sim float64) float64 {
	return math.Round(sim*1000) / 1000
}

func (c *Checker) persist(report *models.Report, status *string) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveReport(report); err != nil {
		*status = "error"
		return fmt.Errorf("persisting report: %w", err)
	}
	return nil
}

// instrumentedSource decorates a corpus source with fetch outcome counters.
type instrumentedSource struct {
	corpus.Source
	metrics *metrics.BusinessMetrics
}

func (s instrumentedSource) Search(ctx context.Context, query string, keywords []string) ([]models.ExternalCandidate, error) {
	candidates, err := s.Source.Search(ctx, query, keywords)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.SourceFetches.WithLabelValues(s.Name(), status).Inc()
	return candidates, err
}

func instrumentSources(sources []corpus.Source, m *metrics.BusinessMetrics) []corpus.Source {
	wrapped := make([]corpus.Source, len(sources))
	for i, src := range sources {
		wrapped[i] = instrumentedSource{Source: src, metrics: m}
	}
	return wrapped
}
