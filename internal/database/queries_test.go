package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/plagiarismdetector/internal/models"
)

func setupTestDatabase(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.Migrate(), "failed to run migrations")

	t.Cleanup(func() { db.Close() })
	return db
}

func createTestReport(id string) *models.Report {
	return &models.Report{
		ID:            id,
		Name:          "essay.txt",
		Content:       "The quick brown fox jumps over the lazy dog every single day.",
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		SimilarityPct: 83.3,
		Sources:       []string{"Fox Behaviour Quarterly"},
		WordCount:     12,
		TimeSpent:     "00:02",
		Flagged:       true,
		Matches: []models.MatchDetail{
			{
				MatchedText: "The quick brown fox jumps over the lazy dog",
				Similarity:  0.833,
				SourceType:  models.SourceTypeNews,
				SourceTitle: "Fox Behaviour Quarterly",
				SourceURL:   "https://news.example/foxes",
			},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	db := setupTestDatabase(t)

	report := createTestReport("report-1")
	require.NoError(t, db.SaveReport(report))

	got, err := db.GetReport("report-1")
	require.NoError(t, err)

	assert.Equal(t, report.Name, got.Name)
	assert.Equal(t, report.Content, got.Content)
	assert.Equal(t, report.SimilarityPct, got.SimilarityPct)
	assert.Equal(t, report.Sources, got.Sources)
	assert.Equal(t, report.WordCount, got.WordCount)
	assert.Equal(t, report.TimeSpent, got.TimeSpent)
	assert.True(t, got.Flagged)
	require.Len(t, got.Matches, 1)
	assert.Equal(t, report.Matches[0], got.Matches[0])
}

func TestGetReportNotFound(t *testing.T) {
	db := setupTestDatabase(t)

	_, err := db.GetReport("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListReports(t *testing.T) {
	db := setupTestDatabase(t)

	first := createTestReport("report-a")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := createTestReport("report-b")
	second.CreatedAt = time.Now().UTC()

	require.NoError(t, db.SaveReport(first))
	require.NoError(t, db.SaveReport(second))

	reports, err := db.ListReports(10, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "report-b", reports[0].ID, "newest first")

	limited, err := db.ListReports(1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "report-a", limited[0].ID)
}

func TestDeleteReport(t *testing.T) {
	db := setupTestDatabase(t)

	require.NoError(t, db.SaveReport(createTestReport("doomed")))
	require.NoError(t, db.DeleteReport("doomed"))

	_, err := db.GetReport("doomed")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.DeleteReport("doomed"), ErrNotFound)
}

func TestSaveAndSearchSources(t *testing.T) {
	db := setupTestDatabase(t)

	source := &models.ExternalCandidate{
		ID:         "src-1",
		Text:       "Volcanic eruptions disrupted European aviation for several weeks.",
		Title:      "Volcano report",
		SourceURL:  "https://example.com/volcano",
		SourceType: models.SourceTypeTeacherUpload,
	}
	require.NoError(t, db.SaveSource(source))

	got, err := db.SearchSources([]string{"volcanic", "aviation"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "src-1", got[0].ID)
	assert.Equal(t, "Volcano report", got[0].Title)

	// Keywords appearing nowhere yield nothing, from either search path.
	empty, err := db.SearchSources([]string{"astrophysics"}, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchSourcesSubstringFallback(t *testing.T) {
	db := setupTestDatabase(t)

	source := &models.ExternalCandidate{
		ID:         "src-2",
		Text:       "Deoxyribonucleic acid stores genetic information.",
		Title:      "Genetics primer",
		SourceType: models.SourceTypeAcademic,
	}
	require.NoError(t, db.SaveSource(source))

	// A partial token misses the full-text index but hits the substring
	// fallback.
	got, err := db.SearchSources([]string{"deoxyribo"}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "src-2", got[0].ID)
}

func TestGetSource(t *testing.T) {
	db := setupTestDatabase(t)

	source := &models.ExternalCandidate{
		ID:         "src-3",
		Text:       "Some stored reference text.",
		Title:      "Reference",
		SourceType: models.SourceTypeOther,
	}
	require.NoError(t, db.SaveSource(source))

	got, err := db.GetSource("src-3")
	require.NoError(t, err)
	assert.Equal(t, source.Text, got.Text)
	assert.Empty(t, got.Embedding)

	_, err = db.GetSource("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetSourceEmbedding(t *testing.T) {
	db := setupTestDatabase(t)

	source := &models.ExternalCandidate{
		ID:         "src-4",
		Text:       "Text awaiting an embedding.",
		Title:      "Pending",
		SourceType: models.SourceTypeOther,
	}
	require.NoError(t, db.SaveSource(source))

	// Nothing has an embedding yet.
	withEmb, err := db.ListSourcesWithEmbeddings(10)
	require.NoError(t, err)
	assert.Empty(t, withEmb)

	embedding := []float32{0.1, -0.2, 0.3}
	require.NoError(t, db.SetSourceEmbedding("src-4", embedding))

	got, err := db.GetSource("src-4")
	require.NoError(t, err)
	require.Len(t, got.Embedding, 3)
	assert.InDelta(t, -0.2, float64(got.Embedding[1]), 1e-6)

	withEmb, err = db.ListSourcesWithEmbeddings(10)
	require.NoError(t, err)
	require.Len(t, withEmb, 1)
	assert.Equal(t, "src-4", withEmb[0].ID)

	assert.ErrorIs(t, db.SetSourceEmbedding("missing", embedding), ErrNotFound)
}
