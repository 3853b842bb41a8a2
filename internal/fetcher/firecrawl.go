package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultFirecrawlBaseURL is the Firecrawl API endpoint.
const DefaultFirecrawlBaseURL = "https://api.firecrawl.dev"

// ErrScrapeTimeout is returned when Firecrawl could not load the page in time.
var ErrScrapeTimeout = errors.New("firecrawl scrape timeout")

// Firecrawl fetches pages through the Firecrawl scrape API.
type Firecrawl struct {
	client      *http.Client
	apiKey      string
	baseURL     string
	pageTimeout time.Duration
}

// FirecrawlOption configures a Firecrawl fetcher.
type FirecrawlOption func(*Firecrawl)

// WithFirecrawlBaseURL overrides the API endpoint.
func WithFirecrawlBaseURL(u string) FirecrawlOption {
	return func(f *Firecrawl) {
		if u != "" {
			f.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPageTimeout sets how long Firecrawl may spend loading a page.
func WithPageTimeout(d time.Duration) FirecrawlOption {
	return func(f *Firecrawl) {
		f.pageTimeout = d
	}
}

// NewFirecrawl creates a Firecrawl fetcher.
func NewFirecrawl(client *http.Client, apiKey string, opts ...FirecrawlOption) *Firecrawl {
	f := &Firecrawl{
		client:  client,
		apiKey:  apiKey,
		baseURL: DefaultFirecrawlBaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = http.DefaultClient
	}
	return f
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	Timeout         int64    `json:"timeout,omitempty"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string   `json:"markdown"`
		HTML     string   `json:"html"`
		Links    []string `json:"links"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Language    string `json:"language"`
			SourceURL   string `json:"sourceURL"`
			URL         string `json:"url"`
			StatusCode  int    `json:"statusCode"`
			Error       string `json:"error"`
		} `json:"metadata"`
	} `json:"data"`
}

// Fetch implements Fetcher.
func (f *Firecrawl) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	payload, err := json.Marshal(scrapeRequest{
		URL:             rawURL,
		Formats:         []string{"markdown", "html", "links"},
		OnlyMainContent: true,
		Timeout:         f.pageTimeout.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("firecrawl request for %s: %w", rawURL, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout:
		return nil, fmt.Errorf("%w: %s", ErrScrapeTimeout, rawURL)
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: firecrawl returned status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("firecrawl rejected %s: status %d: %s", rawURL, resp.StatusCode, truncate(string(body), 200))
	}

	var sr scrapeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: invalid scrape response: %w", ErrUnavailable, err)
	}
	if !sr.Success {
		return nil, fmt.Errorf("firecrawl could not scrape %s: %s", rawURL, sr.Error)
	}

	meta := sr.Data.Metadata
	if meta.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{URL: rawURL, StatusCode: meta.StatusCode}
	}

	finalURL := rawURL
	if meta.URL != "" {
		finalURL = meta.URL
	}

	page := &Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: meta.StatusCode,
		Markdown:   strings.TrimSpace(sr.Data.Markdown),
		HTML:       sr.Data.HTML,
		Text:       CollapseSpace(sr.Data.Markdown),
		Links:      NormalizeLinks(finalURL, sr.Data.Links),
		Metadata:   map[string]string{MetaSourceURL: rawURL},
	}
	if meta.Title != "" {
		page.Metadata[MetaTitle] = meta.Title
	}
	if meta.Description != "" {
		page.Metadata[MetaDescription] = meta.Description
	}
	if meta.Language != "" {
		page.Metadata[MetaLanguage] = meta.Language
	}
	return page, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
