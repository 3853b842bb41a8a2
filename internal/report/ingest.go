package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/driftwatch/internal/model"
)

// IngestVersion is the version of the run summary format.
const IngestVersion = "1.0.0"

// IngestSummary is the run summary posted to an ingest endpoint.
type IngestSummary struct {
	TenantID        string         `json:"tenant_id"`
	ScoutID         string         `json:"scout_id"`
	Domain          string         `json:"domain"`
	ExecutionID     string         `json:"execution_id"`
	Status          string         `json:"status"`
	Links           []IngestLink   `json:"links"`
	URLsNew         []string       `json:"urls_new"`
	URLsRemoved     []string       `json:"urls_removed"`
	SemanticChanges []IngestChange `json:"semantic_changes"`
	Metadata        IngestMetadata `json:"metadata"`
}

// IngestLink is one link validation of the run.
type IngestLink struct {
	URL            string `json:"url"`
	StatusCode     int    `json:"status_code"`
	RedirectTarget string `json:"redirect_target,omitempty"`
	IsExternal     bool   `json:"is_external"`
	IsBroken       bool   `json:"is_broken"`
}

// IngestChange is one content change of the run.
type IngestChange struct {
	URL         string `json:"url"`
	FieldName   string `json:"field_name"`
	OldValue    string `json:"old_value"`
	NewValue    string `json:"new_value"`
	ImpactLevel string `json:"impact_level"`
}

// IngestMetadata describes the summary itself.
type IngestMetadata struct {
	Timestamp      time.Time `json:"timestamp"`
	AdapterVersion string    `json:"adapter_version"`
	AlertsCount    int       `json:"alerts_generated"`
}

// NewIngestSummary builds the summary of r.
func NewIngestSummary(r *Report, tenantID string, now time.Time) IngestSummary {
	e := r.Execution
	s := IngestSummary{
		TenantID:        tenantID,
		ScoutID:         e.ScoutID,
		Domain:          e.Domain,
		ExecutionID:     e.ID,
		Status:          string(e.Status),
		Links:           make([]IngestLink, 0, len(r.Validations)),
		URLsNew:         make([]string, 0),
		URLsRemoved:     make([]string, 0),
		SemanticChanges: make([]IngestChange, 0, len(r.SemanticDeltas)),
		Metadata: IngestMetadata{
			Timestamp:      now.UTC(),
			AdapterVersion: IngestVersion,
			AlertsCount:    e.AlertsGenerated,
		},
	}

	host := hostOf(e.Domain)
	for _, v := range r.Validations {
		s.Links = append(s.Links, IngestLink{
			URL:            v.URL,
			StatusCode:     v.StatusCode,
			RedirectTarget: v.RedirectTarget,
			IsExternal:     host != "" && hostOf(v.URL) != host,
			IsBroken:       v.IsBroken,
		})
	}

	seen := make(map[string]struct{}, len(r.URLDeltas))
	for _, d := range r.URLDeltas {
		key := string(d.Type) + " " + d.URL
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		switch d.Type {
		case model.DeltaNew:
			s.URLsNew = append(s.URLsNew, d.URL)
		case model.DeltaRemoved:
			s.URLsRemoved = append(s.URLsRemoved, d.URL)
		}
	}

	for _, d := range r.SemanticDeltas {
		s.SemanticChanges = append(s.SemanticChanges, IngestChange{
			URL:         d.URL,
			FieldName:   "keywords",
			OldValue:    strings.Join(d.PreviousKeywords, ", "),
			NewValue:    strings.Join(d.DetectedKeywords, ", "),
			ImpactLevel: d.Impact.String(),
		})
	}
	return s
}

// hostOf returns the lower-cased host of a URL or bare domain.
func hostOf(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// IngestPublisher posts run summaries to an HTTP endpoint.
type IngestPublisher struct {
	client   *http.Client
	url      string
	tenantID string
	now      func() time.Time
}

// IngestOption configures an IngestPublisher.
type IngestOption func(*IngestPublisher)

// WithTenantID sets the tenant reported in every summary.
func WithTenantID(id string) IngestOption {
	return func(p *IngestPublisher) {
		p.tenantID = id
	}
}

// WithIngestClock sets the clock used for the summary timestamp.
func WithIngestClock(now func() time.Time) IngestOption {
	return func(p *IngestPublisher) {
		p.now = now
	}
}

// NewIngestPublisher creates an IngestPublisher posting to endpoint.
func NewIngestPublisher(client *http.Client, endpoint string, opts ...IngestOption) *IngestPublisher {
	p := &IngestPublisher{
		client: client,
		url:    endpoint,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	return p
}

// Publish posts the summary of r. Any non-2xx answer is an error.
func (p *IngestPublisher) Publish(ctx context.Context, r *Report) error {
	if r == nil || r.Execution == nil {
		return ErrNoExecution
	}

	payload, err := json.Marshal(NewIngestSummary(r, p.tenantID, p.now()))
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post run summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // body is only used in the error
		return fmt.Errorf("ingest endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
