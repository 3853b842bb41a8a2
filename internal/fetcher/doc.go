// Package fetcher retrieves monitored pages as markdown, HTML and links.
//
// Two implementations are provided:
//   - Firecrawl: delegates rendering and extraction to the Firecrawl scrape API
//   - Direct: fetches the page itself and extracts content locally with
//     goquery, go-readability, bluemonday and html-to-markdown
//
// Failures of the collaborator itself (Firecrawl down, quota exhausted,
// invalid credentials) wrap ErrUnavailable. Failures of the monitored page
// (timeouts, HTTP errors) do not: they are per-URL data for the engine.
package fetcher
