package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// SerperSearch implements SearchProvider against the Serper web-search API,
// grounded on original_source's web_search.web_search "serper" provider.
type SerperSearch struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewConfiguredSearch builds a SearchProvider from RESEARCH_SERPER_API_KEY
// (falling back to WEB_SEARCH_API_KEY).
func NewConfiguredSearch(log interface{ Warn(string, ...interface{}) }) SearchProvider {
	apiKey := os.Getenv("RESEARCH_SERPER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("WEB_SEARCH_API_KEY")
	}
	if apiKey == "" && log != nil {
		log.Warn("no search API key configured; search adapter will fail at runtime")
	}
	return &SerperSearch{
		apiKey:     apiKey,
		baseURL:    "https://google.serper.dev/search",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SerperSearch) GetSources(ctx context.Context, query string) ([]SourceRecord, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("external: search provider has no API key configured")
	}

	reqURL := s.baseURL + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("external: build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("external: search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external: search returned status %d", resp.StatusCode)
	}

	var body struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("external: decode search response: %w", err)
	}

	sources := make([]SourceRecord, 0, len(body.Organic))
	for _, o := range body.Organic {
		sources = append(sources, SourceRecord{Title: o.Title, Link: o.Link, Snippet: o.Snippet})
	}
	return sources, nil
}
