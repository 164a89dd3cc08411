// Package api exposes the HTTP surface of the plagiarism detector.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/plagiarismdetector/internal/database"
	"github.com/zombar/plagiarismdetector/internal/models"
	"github.com/zombar/plagiarismdetector/internal/pipeline"
	"github.com/zombar/plagiarismdetector/internal/textutil"
	"github.com/zombar/plagiarismdetector/pkg/tracing"
)

const requestTimeout = 30 * time.Second

// QueueClient is the slice of the queue client the handler needs.
type QueueClient interface {
	EnqueueCheckDocument(ctx context.Context, reportID, name, text string) (string, error)
	EnqueueEmbedSource(ctx context.Context, sourceID string) (string, error)
}

// Handler handles HTTP requests
type Handler struct {
	db          *database.DB
	checker     *pipeline.Checker
	queueClient QueueClient
	mux         *http.ServeMux
}

// NewHandler creates the API handler with CORS support and the metrics
// endpoint. queueClient may be nil, in which case checks run synchronously
// inside the request.
func NewHandler(db *database.DB, checker *pipeline.Checker, queueClient QueueClient) http.Handler {
	h := &Handler{
		db:          db,
		checker:     checker,
		queueClient: queueClient,
		mux:         http.NewServeMux(),
	}
	h.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(h.mux)
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler()) // Prometheus metrics endpoint
	h.mux.HandleFunc("/api/check", h.handleCheck)
	h.mux.HandleFunc("/api/batch", h.handleBatch)
	h.mux.HandleFunc("/api/jobs/", h.handleJobStatus)
	h.mux.HandleFunc("/api/reports", h.handleListReports)
	h.mux.HandleFunc("/api/reports/", h.handleReportOperations)
	h.mux.HandleFunc("/api/sources", h.handleAddSource)
	h.mux.HandleFunc("/api/sources/search", h.handleSearchSources)
	h.mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleCheck accepts a document for checking. With a queue configured the
// check is processed asynchronously and a job ID is returned immediately;
// otherwise the check runs inline.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		respondError(w, "Text field is required", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = "untitled"
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("text.length", len(req.Text)),
		attribute.String("document.name", req.Name))

	reportID := models.NewID()

	if h.queueClient != nil {
		taskID, err := h.queueClient.EnqueueCheckDocument(r.Context(), reportID, req.Name, req.Text)
		if err != nil {
			respondError(w, fmt.Sprintf("Failed to enqueue check: %v", err), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]interface{}{
			"job_id":  reportID,
			"task_id": taskID,
			"status":  "queued",
			"message": "Check queued for processing",
		}, http.StatusAccepted)
		return
	}

	resultChan := make(chan *models.Report)
	errorChan := make(chan error)

	go func() {
		report, err := h.checker.CheckWithID(r.Context(), reportID, req.Name, req.Text)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- report
	}()

	select {
	case report := <-resultChan:
		respondJSON(w, report, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(requestTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleBatch checks several documents in one request and returns the
// per-document reports plus the pairwise comparison matrix.
func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Documents []models.BatchDocument `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		respondError(w, "At least one document is required", http.StatusBadRequest)
		return
	}
	for i, doc := range req.Documents {
		if doc.Text == "" {
			respondError(w, fmt.Sprintf("Document %d has no text", i), http.StatusBadRequest)
			return
		}
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("batch.size", len(req.Documents)))

	resultChan := make(chan *models.BatchResult)
	errorChan := make(chan error)

	go func() {
		result, err := h.checker.CheckBatch(r.Context(), req.Documents)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- result
	}()

	select {
	case result := <-resultChan:
		respondJSON(w, result, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(5 * time.Minute):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleJobStatus reports the progress of an asynchronous check. A report in
// the store means the job finished; anything else is still processing.
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := r.URL.Path[len("/api/jobs/"):]
	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	report, err := h.db.GetReport(jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSON(w, map[string]interface{}{
				"job_id": jobID,
				"status": "processing",
			}, http.StatusOK)
			return
		}
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]interface{}{
		"job_id": jobID,
		"status": "completed",
		"report": report,
	}, http.StatusOK)
}

// handleListReports lists stored reports with limit/offset paging.
func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	resultChan := make(chan []*models.Report)
	errorChan := make(chan error)

	go func() {
		reports, err := h.db.ListReports(limit, offset)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- reports
	}()

	select {
	case reports := <-resultChan:
		respondJSON(w, reports, http.StatusOK)
	case err := <-errorChan:
		respondError(w, err.Error(), http.StatusInternalServerError)
	case <-time.After(requestTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleReportOperations handles GET and DELETE for specific reports
func (h *Handler) handleReportOperations(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/api/reports/"):]
	if id == "" {
		respondError(w, "Report ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getReport(w, r, id)
	case http.MethodDelete:
		h.deleteReport(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request, id string) {
	resultChan := make(chan *models.Report)
	errorChan := make(chan error)

	go func() {
		report, err := h.db.GetReport(id)
		if err != nil {
			errorChan <- err
			return
		}
		resultChan <- report
	}()

	select {
	case report := <-resultChan:
		respondJSON(w, report, http.StatusOK)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, "report not found", http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(requestTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

func (h *Handler) deleteReport(w http.ResponseWriter, r *http.Request, id string) {
	errorChan := make(chan error)
	doneChan := make(chan bool)

	go func() {
		if err := h.db.DeleteReport(id); err != nil {
			errorChan <- err
			return
		}
		doneChan <- true
	}()

	select {
	case <-doneChan:
		w.WriteHeader(http.StatusNoContent)
	case err := <-errorChan:
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, "report not found", http.StatusNotFound)
		} else {
			respondError(w, err.Error(), http.StatusInternalServerError)
		}
	case <-time.After(requestTimeout):
		respondError(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleAddSource stores a reference document in the local corpus and queues
// it for embedding.
func (h *Handler) handleAddSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Title      string `json:"title"`
		Text       string `json:"text"`
		SourceURL  string `json:"source_url"`
		SourceType string `json:"source_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		respondError(w, "Text field is required", http.StatusBadRequest)
		return
	}
	switch req.SourceType {
	case models.SourceTypeNews, models.SourceTypeAcademic, models.SourceTypeTeacherUpload, models.SourceTypeOther:
	case "":
		req.SourceType = models.SourceTypeTeacherUpload
	default:
		respondError(w, "Unknown source type", http.StatusBadRequest)
		return
	}

	source := &models.ExternalCandidate{
		ID:         models.NewID(),
		Text:       req.Text,
		Title:      req.Title,
		SourceURL:  req.SourceURL,
		SourceType: req.SourceType,
	}
	if err := h.db.SaveSource(source); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	embeddingQueued := false
	if h.queueClient != nil {
		if _, err := h.queueClient.EnqueueEmbedSource(r.Context(), source.ID); err != nil {
			// The source is stored and searchable lexically either way.
			respondJSON(w, map[string]interface{}{
				"id":               source.ID,
				"embedding_queued": false,
				"warning":          fmt.Sprintf("embedding not queued: %v", err),
			}, http.StatusCreated)
			return
		}
		embeddingQueued = true
	}

	respondJSON(w, map[string]interface{}{
		"id":               source.ID,
		"embedding_queued": embeddingQueued,
	}, http.StatusCreated)
}

// handleSearchSources searches the stored corpus by keyword.
func (h *Handler) handleSearchSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	keywords := textutil.Keywords(query, 10)
	if len(keywords) == 0 {
		respondJSON(w, []models.ExternalCandidate{}, http.StatusOK)
		return
	}

	sources, err := h.db.SearchSources(keywords, limit)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []models.ExternalCandidate{}
	}
	respondJSON(w, sources, http.StatusOK)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
