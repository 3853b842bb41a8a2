package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
)

// DefaultMailgunBaseURL is the Mailgun API endpoint for the US region.
const DefaultMailgunBaseURL = "https://api.mailgun.net"

// Mailgun sends alerts as email through the Mailgun messages API.
type Mailgun struct {
	client     *http.Client
	baseURL    string
	domain     string
	apiKey     string
	from       string
	recipients RecipientResolver
}

// MailgunOption configures a Mailgun notifier.
type MailgunOption func(*Mailgun)

// WithMailgunBaseURL overrides the API endpoint, e.g. for the EU region.
func WithMailgunBaseURL(u string) MailgunOption {
	return func(m *Mailgun) {
		if u != "" {
			m.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) MailgunOption {
	return func(m *Mailgun) {
		if c != nil {
			m.client = c
		}
	}
}

// NewMailgun creates a Mailgun notifier sending from the given address.
func NewMailgun(domain, apiKey, from string, recipients RecipientResolver, opts ...MailgunOption) *Mailgun {
	m := &Mailgun{
		client:     http.DefaultClient,
		baseURL:    DefaultMailgunBaseURL,
		domain:     domain,
		apiKey:     apiKey,
		from:       from,
		recipients: recipients,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type mailgunResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send implements Notifier. It returns the Mailgun message id.
func (m *Mailgun) Send(ctx context.Context, alert model.Alert) (string, error) {
	to, err := m.recipients.Recipients(ctx, alert)
	if err != nil {
		return "", fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(to) == 0 {
		return "", fmt.Errorf("%w: %d", ErrNoRecipients, alert.ID)
	}

	text, err := TextBody(alert)
	if err != nil {
		return "", err
	}
	html, err := HTMLBody(alert)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("from", m.from)
	for _, rcpt := range to {
		form.Add("to", rcpt)
	}
	form.Set("subject", Subject(alert))
	form.Set("text", text)
	form.Set("html", html)
	for _, tag := range []string{
		"driftwatch",
		"runtime-validator",
		"alert",
		"severity:" + alert.Severity.String(),
		"type:" + string(alert.Type),
	} {
		form.Add("o:tag", tag)
	}
	form.Set("o:tracking", "yes")
	form.Set("o:tracking-clicks", "yes")
	form.Set("o:tracking-opens", "yes")
	form.Set("v:execution_id", alert.ExecutionID)
	form.Set("v:alert_type", string(alert.Type))
	form.Set("v:alert_id", strconv.FormatInt(alert.ID, 10))

	endpoint := fmt.Sprintf("%s/v3/%s/messages", m.baseURL, url.PathEscape(m.domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create mailgun request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send mailgun message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read mailgun response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mailgun returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var mr mailgunResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return "", fmt.Errorf("failed to parse mailgun response: %w", err)
	}
	return mr.ID, nil
}
