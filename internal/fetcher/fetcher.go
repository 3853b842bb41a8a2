package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is wrapped by errors caused by the fetching collaborator
// itself rather than by the page being fetched.
var ErrUnavailable = errors.New("content fetcher unavailable")

// Metadata keys set on Page.Metadata.
const (
	MetaTitle       = "title"
	MetaDescription = "description"
	MetaSourceURL   = "source_url"
	MetaLanguage    = "language"
)

// Page is a fetched page.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects. Equal to URL when not redirected.
	FinalURL string

	// StatusCode is the HTTP status of the page.
	StatusCode int

	// Markdown is the main content rendered as markdown.
	Markdown string

	// HTML is the raw page HTML.
	HTML string

	// Text is the visible text of the whole page, whitespace-collapsed.
	// Keywords and fingerprints are computed from it.
	Text string

	// Links are the absolute http(s) links found on the page, deduplicated and sorted.
	Links []string

	// Metadata holds page metadata such as the title.
	Metadata map[string]string
}

// Fetcher retrieves a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// StatusError is returned when the monitored page answers with an HTTP error status.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
