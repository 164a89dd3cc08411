package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zombar/plagiarismdetector/internal/models"
)

// ErrNotFound is returned when a report or source does not exist.
var ErrNotFound = errors.New("not found")

// SaveReport stores a completed report.
func (db *DB) SaveReport(report *models.Report) error {
	sourcesJSON, err := json.Marshal(report.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}
	matchesJSON, err := json.Marshal(report.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO reports (id, name, content, created_at, similarity, sources, word_count, time_spent, flagged, matches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.Name, report.Content, report.CreatedAt, report.SimilarityPct,
		string(sourcesJSON), report.WordCount, report.TimeSpent, report.Flagged, string(matchesJSON))
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by ID.
func (db *DB) GetReport(id string) (*models.Report, error) {
	report := &models.Report{ID: id}
	var (
		sourcesJSON string
		matchesJSON string
	)

	err := db.conn.QueryRow(`
		SELECT name, content, created_at, similarity, sources, word_count, time_spent, flagged, matches
		FROM reports
		WHERE id = ?
	`, id).Scan(&report.Name, &report.Content, &report.CreatedAt, &report.SimilarityPct,
		&sourcesJSON, &report.WordCount, &report.TimeSpent, &report.Flagged, &matchesJSON)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &report.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	if err := json.Unmarshal([]byte(matchesJSON), &report.Matches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matches: %w", err)
	}

	return report, nil
}

// ListReports retrieves reports newest-first with pagination. The report
// content and match lists are included.
func (db *DB) ListReports(limit, offset int) ([]*models.Report, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, content, created_at, similarity, sources, word_count, time_spent, flagged, matches
		FROM reports
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report := &models.Report{}
		var sourcesJSON, matchesJSON string

		if err := rows.Scan(&report.ID, &report.Name, &report.Content, &report.CreatedAt,
			&report.SimilarityPct, &sourcesJSON, &report.WordCount, &report.TimeSpent,
			&report.Flagged, &matchesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(sourcesJSON), &report.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
		if err := json.Unmarshal([]byte(matchesJSON), &report.Matches); err != nil {
			return nil, fmt.Errorf("failed to unmarshal matches: %w", err)
		}

		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return reports, nil
}

// DeleteReport deletes a report by ID.
func (db *DB) DeleteReport(id string) error {
	result, err := db.conn.Exec("DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveSource adds a document to the local source corpus and indexes it for
// full-text search.
func (db *DB) SaveSource(source *models.ExternalCandidate) error {
	var embeddingJSON any
	if len(source.Embedding) > 0 {
		data, err := json.Marshal(source.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		embeddingJSON = string(data)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sources (id, title, body, source_url, source_type, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, source.ID, source.Title, source.Text, source.SourceURL, source.SourceType, embeddingJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sources_fts (source_id, title, body)
		VALUES (?, ?, ?)
	`, source.ID, source.Title, source.Text)
	if err != nil {
		return fmt.Errorf("failed to index source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSource retrieves a corpus source by ID.
func (db *DB) GetSource(id string) (*models.ExternalCandidate, error) {
	source := &models.ExternalCandidate{ID: id}
	var embeddingJSON sql.NullString

	err := db.conn.QueryRow(`
		SELECT title, body, source_url, source_type, embedding
		FROM sources
		WHERE id = ?
	`, id).Scan(&source.Title, &source.Text, &source.SourceURL, &source.SourceType, &embeddingJSON)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	if embeddingJSON.Valid {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &source.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}

	return source, nil
}

// SetSourceEmbedding stores the embedding vector for an existing source.
func (db *DB) SetSourceEmbedding(id string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	result, err := db.conn.Exec("UPDATE sources SET embedding = ? WHERE id = ?", string(data), id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SearchSources finds corpus sources for a keyword query. The full-text
// index is consulted first; when it yields nothing, the query falls back to
// ORing the individual keywords against title and body, case-insensitive.
func (db *DB) SearchSources(keywords []string, limit int) ([]models.ExternalCandidate, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}

	candidates, err := db.searchSourcesFTS(keywords, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	return db.searchSourcesLike(keywords, limit)
}

// SearchSourcesSubstring finds corpus sources whose title or body contains
// the given text, for queries that yield no usable keywords.
func (db *DB) SearchSourcesSubstring(term string, limit int) ([]models.ExternalCandidate, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 25
	}
	return db.searchSourcesLike([]string{term}, limit)
}

func (db *DB) searchSourcesFTS(keywords []string, limit int) ([]models.ExternalCandidate, error) {
	// fts5 query: quoted tokens ORed together
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = `"` + strings.ReplaceAll(kw, `"`, `""`) + `"`
	}
	match := strings.Join(quoted, " OR ")

	rows, err := db.conn.Query(`
		SELECT s.id, s.title, s.body, s.source_url, s.source_type, s.embedding
		FROM sources_fts f
		INNER JOIN sources s ON s.id = f.source_id
		WHERE sources_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query source index: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

func (db *DB) searchSourcesLike(keywords []string, limit int) ([]models.ExternalCandidate, error) {
	var clauses []string
	var args []any
	for _, kw := range keywords {
		pattern := "%" + strings.ToLower(escapeLike(kw)) + "%"
		clauses = append(clauses, "LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(body) LIKE ? ESCAPE '\\'")
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT id, title, body, source_url, source_type, embedding
		FROM sources
		WHERE `+strings.Join(clauses, " OR ")+`
		ORDER BY created_at DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ListSourcesWithEmbeddings retrieves corpus sources that carry a stored
// embedding, for semantic ranking.
func (db *DB) ListSourcesWithEmbeddings(limit int) ([]models.ExternalCandidate, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := db.conn.Query(`
		SELECT id, title, body, source_url, source_type, embedding
		FROM sources
		WHERE embedding IS NOT NULL
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

func scanSources(rows *sql.Rows) ([]models.ExternalCandidate, error) {
	var sources []models.ExternalCandidate
	for rows.Next() {
		var source models.ExternalCandidate
		var embeddingJSON sql.NullString

		if err := rows.Scan(&source.ID, &source.Title, &source.Text, &source.SourceURL,
			&source.SourceType, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if embeddingJSON.Valid {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &source.Embedding); err != nil {
				return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
			}
		}

		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sources, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
