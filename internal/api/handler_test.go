package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/plagiarismdetector/internal/corpus"
	"github.com/zombar/plagiarismdetector/internal/database"
	"github.com/zombar/plagiarismdetector/internal/models"
	"github.com/zombar/plagiarismdetector/internal/pipeline"
)

type stubSource struct {
	candidates []models.ExternalCandidate
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Search(context.Context, string, []string) ([]models.ExternalCandidate, error) {
	return s.candidates, nil
}

type fakeQueue struct {
	checkCalls []string
	embedCalls []string
	err        error
}

func (q *fakeQueue) EnqueueCheckDocument(_ context.Context, reportID, _, _ string) (string, error) {
	q.checkCalls = append(q.checkCalls, reportID)
	return "task-1", q.err
}

func (q *fakeQueue) EnqueueEmbedSource(_ context.Context, sourceID string) (string, error) {
	q.embedCalls = append(q.embedCalls, sourceID)
	return "task-2", q.err
}

func setupHandler(t *testing.T, candidates []models.ExternalCandidate, queueClient QueueClient) (http.Handler, *database.DB) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	checker, err := pipeline.New(pipeline.DefaultConfig(),
		[]corpus.Source{&stubSource{candidates: candidates}},
		pipeline.WithStore(db))
	require.NoError(t, err)
	t.Cleanup(checker.Close)

	return NewHandler(db, checker, queueClient), db
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := setupHandler(t, nil, nil)

	rec := get(handler, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCheckSynchronous(t *testing.T) {
	candidates := []models.ExternalCandidate{{
		Text:       "the quick brown fox jumps over the lazy dog everyday",
		Title:      "Fox article",
		SourceType: models.SourceTypeNews,
	}}
	handler, _ := setupHandler(t, candidates, nil)

	rec := postJSON(t, handler, "/api/check", map[string]string{
		"name": "essay.txt",
		"text": "The quick brown fox jumps over the lazy dog everyday.",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "essay.txt", report.Name)
	assert.Equal(t, 100.0, report.SimilarityPct)
	assert.True(t, report.Flagged)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, "Fox article", report.Matches[0].SourceTitle)
}

func TestCheckValidation(t *testing.T) {
	handler, _ := setupHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/check", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/check", bytes.NewReader([]byte("{broken")))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)

	rec3 := get(handler, "/api/check")
	assert.Equal(t, http.StatusMethodNotAllowed, rec3.Code)
}

func TestCheckAsynchronous(t *testing.T) {
	q := &fakeQueue{}
	handler, _ := setupHandler(t, nil, q)

	rec := postJSON(t, handler, "/api/check", map[string]string{
		"name": "essay.txt",
		"text": "Some text long enough to be worth queueing for a check.",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "queued", body["status"])
	assert.NotEmpty(t, body["job_id"])
	require.Len(t, q.checkCalls, 1)
	assert.Equal(t, body["job_id"], q.checkCalls[0])
}

func TestJobStatus(t *testing.T) {
	handler, db := setupHandler(t, nil, nil)

	rec := get(handler, "/api/jobs/unknown-job")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Equal(t, "processing", pending["status"])

	report := &models.Report{
		ID:      "job-1",
		Name:    "done.txt",
		Content: "content",
	}
	require.NoError(t, db.SaveReport(report))

	rec = get(handler, "/api/jobs/job-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var completed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "completed", completed["status"])
	assert.NotNil(t, completed["report"])
}

func TestBatchEndpoint(t *testing.T) {
	handler, _ := setupHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/batch", map[string]any{
		"documents": []models.BatchDocument{
			{Name: "a.txt", Text: "The first of two perfectly original submissions for comparison."},
			{Name: "b.txt", Text: "The second of two perfectly original submissions for comparison."},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Reports, 2)
}

func TestBatchValidation(t *testing.T) {
	handler, _ := setupHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/batch", map[string]any{"documents": []models.BatchDocument{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/api/batch", map[string]any{
		"documents": []models.BatchDocument{{Name: "empty.txt", Text: ""}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportLifecycle(t *testing.T) {
	handler, db := setupHandler(t, nil, nil)

	require.NoError(t, db.SaveReport(&models.Report{ID: "r-1", Name: "one.txt"}))
	require.NoError(t, db.SaveReport(&models.Report{ID: "r-2", Name: "two.txt"}))

	rec := get(handler, "/api/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []*models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	assert.Len(t, reports, 2)

	rec = get(handler, "/api/reports/r-1")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/reports/r-1", nil)
	del := httptest.NewRecorder()
	handler.ServeHTTP(del, req)
	assert.Equal(t, http.StatusNoContent, del.Code)

	rec = get(handler, "/api/reports/r-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddSourceAndSearch(t *testing.T) {
	q := &fakeQueue{}
	handler, _ := setupHandler(t, nil, q)

	rec := postJSON(t, handler, "/api/sources", map[string]string{
		"title":       "Volcano report",
		"text":        "Volcanic eruptions disrupted European aviation for several weeks.",
		"source_type": models.SourceTypeTeacherUpload,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, true, created["embedding_queued"])
	require.Len(t, q.embedCalls, 1)

	rec = get(handler, "/api/sources/search?q=volcanic+aviation")
	require.Equal(t, http.StatusOK, rec.Code)
	var found []models.ExternalCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "Volcano report", found[0].Title)
}

func TestAddSourceValidation(t *testing.T) {
	handler, _ := setupHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/sources", map[string]string{"title": "no text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/api/sources", map[string]string{
		"text":        "valid text",
		"source_type": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchSourcesRequiresQuery(t *testing.T) {
	handler, _ := setupHandler(t, nil, nil)

	rec := get(handler, "/api/sources/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
