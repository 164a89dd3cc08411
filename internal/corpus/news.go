package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zombar/plagiarismdetector/internal/models"
)

const (
	defaultNewsPageSize = 5
	newsRequestTimeout  = 15 * time.Second
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// NewsSource fetches recent articles from a Guardian-compatible content API,
// ordered by relevance to the query. Article bodies arrive as HTML and are
// stripped to plain text before matching.
type NewsSource struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	pageSize int
}

func NewNewsSource(baseURL, apiKey string) *NewsSource {
	return &NewsSource{
		client:   &http.Client{Timeout: newsRequestTimeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		pageSize: defaultNewsPageSize,
	}
}

func (s *NewsSource) Name() string { return "news" }

type newsEnvelope struct {
	Response struct {
		Results []struct {
			WebTitle string `json:"webTitle"`
			WebURL   string `json:"webUrl"`
			Fields   struct {
				Body string `json:"body"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

func (s *NewsSource) Search(ctx context.Context, query string, _ []string) ([]models.ExternalCandidate, error) {
	if s.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("page-size", strconv.Itoa(s.pageSize))
	params.Set("show-fields", "body")
	params.Set("order-by", "relevance")
	params.Set("api-key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building news request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying news API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned status %d", resp.StatusCode)
	}

	var envelope newsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding news response: %w", err)
	}

	candidates := make([]models.ExternalCandidate, 0, len(envelope.Response.Results))
	for _, article := range envelope.Response.Results {
		body := StripHTML(article.Fields.Body)
		if body == "" {
			continue
		}
		candidates = append(candidates, models.ExternalCandidate{
			Text:       body,
			Title:      article.WebTitle,
			SourceURL:  article.WebURL,
			SourceType: models.SourceTypeNews,
		})
	}
	return candidates, nil
}

// StripHTML removes markup tags and collapses the remaining whitespace.
func StripHTML(s string) string {
	return strings.Join(strings.Fields(htmlTagRe.ReplaceAllString(s, " ")), " ")
}
