package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zombar/plagiarismdetector/internal/models"
)

const (
	defaultAcademicLimit   = 5
	academicRequestTimeout = 20 * time.Second
	academicMaxAttempts    = 3
	academicBackoffBase    = 500 * time.Millisecond
)

// AcademicSource fetches scholarly works from a CORE-compatible search API
// using bearer-token auth. Server errors are retried with exponential
// backoff; client errors fail immediately.
type AcademicSource struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	workURLBase string
	limit       int
}

func NewAcademicSource(baseURL, apiKey string) *AcademicSource {
	return &AcademicSource{
		client:      &http.Client{Timeout: academicRequestTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		workURLBase: "https://core.ac.uk/works/",
		limit:       defaultAcademicLimit,
	}
}

func (s *AcademicSource) Name() string { return "academic" }

type academicEnvelope struct {
	Results []struct {
		ID       json.Number `json:"id"`
		Title    string      `json:"title"`
		Abstract string      `json:"abstract"`
		FullText string      `json:"fullText"`
	} `json:"results"`
}

func (s *AcademicSource) Search(ctx context.Context, query string, _ []string) ([]models.ExternalCandidate, error) {
	if s.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(s.limit))
	endpoint := s.baseURL + "/search/works?" + params.Encode()

	var envelope academicEnvelope
	var lastErr error
	for attempt := 0; attempt < academicMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := academicBackoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		envelope, lastErr = s.doSearch(ctx, endpoint)
		if lastErr == nil {
			break
		}
		var retriable *retriableError
		if !errors.As(lastErr, &retriable) {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	candidates := make([]models.ExternalCandidate, 0, len(envelope.Results))
	for _, work := range envelope.Results {
		// Abstracts are the most reliable field; titles and full text pad
		// out works that lack one.
		var parts []string
		for _, part := range []string{work.Abstract, work.Title, work.FullText} {
			if strings.TrimSpace(part) != "" {
				parts = append(parts, strings.TrimSpace(part))
			}
		}
		text := strings.Join(parts, " ")
		if text == "" {
			continue
		}
		candidates = append(candidates, models.ExternalCandidate{
			Text:       text,
			Title:      work.Title,
			SourceURL:  s.workURLBase + work.ID.String(),
			SourceType: models.SourceTypeAcademic,
		})
	}
	return candidates, nil
}

func (s *AcademicSource) doSearch(ctx context.Context, endpoint string) (academicEnvelope, error) {
	var envelope academicEnvelope

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return envelope, fmt.Errorf("building academic request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return envelope, &retriableError{err: fmt.Errorf("querying academic API: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return envelope, &retriableError{err: fmt.Errorf("academic API returned status %d", resp.StatusCode)}
	default:
		return envelope, fmt.Errorf("academic API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return envelope, fmt.Errorf("decoding academic response: %w", err)
	}
	return envelope, nil
}

type retriableError struct {
	err error
}

func (e *retriableError) Error() string { return e.err.Error() }
func (e *retriableError) Unwrap() error { return e.err }
