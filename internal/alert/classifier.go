package alert

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
)

// DefaultStructuralPaths mark the paths whose failure blocks a customer.
// They apply when a scout configures no structural paths.
var DefaultStructuralPaths = []string{
	"/checkout", "/checkout/*", "/*/checkout", "/*/checkout/*",
	"/cart", "/cart/*", "/carrito", "/carrito/*",
	"/contact", "/contact/*", "/contact-us", "/contacto", "/contacto/*",
	"/payment", "/payment/*", "/pago", "/pago/*", "/pagar",
}

// Finding is one issue reported by a detector, before deduplication.
type Finding struct {
	Type     model.AlertType
	URL      string
	Severity model.Severity
	Message  string
}

// Classifier assigns severities to detector output for one scout.
type Classifier struct {
	patterns []string
}

// NewClassifier creates a Classifier using the structural paths of scout.
func NewClassifier(scout *model.Scout) *Classifier {
	patterns := DefaultStructuralPaths
	if scout != nil && len(scout.StructuralPaths) > 0 {
		patterns = scout.StructuralPaths
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		lowered = append(lowered, strings.ToLower(p))
	}
	return &Classifier{patterns: lowered}
}

// IsCritical reports whether rawURL points to a structurally critical path.
func (c *Classifier) IsCritical(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	p = strings.ToLower(p)
	if p == "" {
		p = "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}

	for _, pattern := range c.patterns {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

// LinkFailure classifies a link validation. ok is false for healthy links.
func (c *Classifier) LinkFailure(v model.LinkValidation) (Finding, bool) {
	if !v.IsBroken {
		return Finding{}, false
	}

	reason := v.Error
	if reason == "" && v.StatusCode != 0 {
		reason = fmt.Sprintf("status %d", v.StatusCode)
	}
	f := Finding{
		Type:     model.AlertTypeLinkFailure,
		URL:      v.URL,
		Severity: model.SeverityRelevant,
		Message:  fmt.Sprintf("%s is broken: %s", v.URL, reason),
	}
	if c.IsCritical(v.URL) {
		f.Severity = model.SeverityCritical
		f.Message = fmt.Sprintf("critical path %s is broken: %s", v.URL, reason)
	}
	return f, true
}

// URLDeltas classifies the link changes of one page. A cold start raises nothing.
func (c *Classifier) URLDeltas(deltas []model.URLDelta, coldStart bool) []Finding {
	if coldStart {
		return nil
	}

	findings := make([]Finding, 0, len(deltas))
	for _, d := range deltas {
		switch d.Type {
		case model.DeltaNew:
			findings = append(findings, Finding{
				Type:     model.AlertTypeURLNew,
				URL:      d.URL,
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("new link %s on %s", d.URL, d.PageURL),
			})
		case model.DeltaRemoved:
			f := Finding{
				Type:     model.AlertTypeURLRemoved,
				URL:      d.URL,
				Severity: model.SeverityRelevant,
				Message:  fmt.Sprintf("link %s disappeared from %s", d.URL, d.PageURL),
			}
			if c.IsCritical(d.URL) {
				f.Severity = model.SeverityCritical
			}
			findings = append(findings, f)
		}
	}
	return findings
}

// SemanticDelta classifies a content change: the severity is its impact level.
func (c *Classifier) SemanticDelta(d *model.SemanticDelta) (Finding, bool) {
	if d == nil {
		return Finding{}, false
	}
	return Finding{
		Type:     model.AlertTypeContentChange,
		URL:      d.URL,
		Severity: d.Impact.Severity(),
		Message:  fmt.Sprintf("%s content changed (%s impact)", d.URL, d.Impact),
	}, true
}
