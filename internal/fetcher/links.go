package fetcher

import (
	"net/url"
	"slices"
	"strings"
)

// ResolveLink resolves href against base and normalizes it for set comparison:
// the fragment is dropped and only http(s) links are kept.
// It returns "" for links that are not followable (javascript:, mailto:, tel:, data:, "#").
func ResolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

// NormalizeLinks resolves every link against base and returns the
// deduplicated, sorted set of followable links.
func NormalizeLinks(base string, links []string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		resolved := ResolveLink(baseURL, l)
		if resolved == "" {
			continue
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}
	slices.Sort(out)
	return out
}

// IsInternal reports whether link points to the same host as pageURL.
func IsInternal(pageURL, link string) bool {
	p, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	l, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(p.Host, l.Host) || strings.EqualFold(p.Hostname(), l.Hostname())
}

// CollapseSpace trims s and replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
