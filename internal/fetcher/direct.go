package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const defaultMaxBodySize = 5 * 1024 * 1024

// Direct fetches pages itself and extracts their content locally.
type Direct struct {
	client      *http.Client
	maxBodySize int64
	policy      *bluemonday.Policy
	converter   *converter.Converter
	logger      *slog.Logger
}

// DirectOption configures a Direct fetcher.
type DirectOption func(*Direct)

// WithMaxBodySize limits how many bytes of a page are read.
func WithMaxBodySize(n int64) DirectOption {
	return func(d *Direct) {
		if n > 0 {
			d.maxBodySize = n
		}
	}
}

// WithDirectLogger sets the logger.
func WithDirectLogger(l *slog.Logger) DirectOption {
	return func(d *Direct) {
		d.logger = l
	}
}

// NewDirect creates a Direct fetcher using client for requests.
func NewDirect(client *http.Client, opts ...DirectOption) *Direct {
	d := &Direct{
		client:      client,
		maxBodySize: defaultMaxBodySize,
		policy:      bluemonday.UGCPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = http.DefaultClient
	}
	return d
}

// Fetch implements Fetcher. It makes a single attempt; retries are up to the caller.
func (d *Direct) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	finalURL := resp.Request.URL.String()
	page, err := d.Extract(finalURL, string(body))
	if err != nil {
		return nil, err
	}
	page.URL = rawURL
	page.StatusCode = resp.StatusCode
	return page, nil
}

// Extract builds a Page from raw HTML served at pageURL.
func (d *Direct) Extract(pageURL, rawHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		URL:      pageURL,
		FinalURL: pageURL,
		HTML:     rawHTML,
		Metadata: map[string]string{MetaSourceURL: pageURL},
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		page.Metadata[MetaTitle] = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		page.Metadata[MetaDescription] = strings.TrimSpace(desc)
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		page.Metadata[MetaLanguage] = lang
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	page.Links = NormalizeLinks(pageURL, hrefs)

	page.Markdown = d.markdown(doc, pageURL, rawHTML)

	doc.Find("script, style, noscript, template").Remove()
	page.Text = CollapseSpace(doc.Find("body").Text())
	if page.Text == "" {
		page.Text = CollapseSpace(doc.Text())
	}
	return page, nil
}

// markdown renders the main content of the page. Readability strips navigation
// and footers so that the fingerprint follows content changes, not layout changes.
// Pages readability cannot handle fall back to the whole body.
func (d *Direct) markdown(doc *goquery.Document, pageURL, rawHTML string) string {
	content := ""
	if parsed, err := url.Parse(pageURL); err == nil {
		article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
		if err == nil {
			content = strings.TrimSpace(article.Content)
		} else {
			d.logger.Debug("readability failed, using body", "url", pageURL, "error", err)
		}
	}
	if content == "" {
		body, err := doc.Find("body").First().Html()
		if err != nil {
			return strings.TrimSpace(doc.Text())
		}
		content = body
	}

	md, err := d.converter.ConvertString(d.policy.Sanitize(content), converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(doc.Find("body").Text())
	}
	return strings.TrimSpace(md)
}
