// Package report renders executions for people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown for sharing, with a mermaid chart of alert severities
//
// Report gathers an execution and every record attached to it. Load builds
// one from the store. Writers implement the Writer interface and can be
// combined with MultiWriter.
//
// IngestPublisher posts a summary of a finished run to an HTTP ingest endpoint.
package report
