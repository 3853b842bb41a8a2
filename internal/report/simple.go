package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// Plain ASCII sections keep the output readable when piped to a file or a mail body.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no records are shown.
	showEmpty bool

	// verbose adds recommendations and every validated link.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report.Execution)
	w.writeCounters(&sb, report.Execution)
	w.writeAlerts(&sb, report)
	w.writeBrokenLinks(&sb, report)
	w.writeURLDeltas(&sb, report)
	w.writeSemanticDeltas(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per execution.
func (w *SimpleWriter) WriteHistory(execs []*model.Execution) (int, error) {
	var sb strings.Builder

	if len(execs) == 0 {
		sb.WriteString("No executions recorded\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-36s  %-10s  %-23s  %5s  %6s  %6s\n",
		"EXECUTION", "STATUS", "STARTED", "URLS", "BROKEN", "ALERTS")
	for _, e := range execs {
		started, _ := executionTimes(e)
		fmt.Fprintf(&sb, "%-36s  %-10s  %-23s  %5d  %6d  %6d\n",
			e.ID, e.Status, started, e.URLsChecked, e.LinksBroken, e.AlertsGenerated)
	}
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, e *model.Execution) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        DRIFTWATCH EXECUTION\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	started, completed := executionTimes(e)
	fmt.Fprintf(sb, "Execution:      %s\n", e.ID)
	fmt.Fprintf(sb, "Scout:          %s\n", e.ScoutID)
	fmt.Fprintf(sb, "Domain:         %s\n", e.Domain)
	fmt.Fprintf(sb, "Spec Version:   %s\n", e.SpecVersion)
	fmt.Fprintf(sb, "Started:        %s\n", started)
	fmt.Fprintf(sb, "Completed:      %s\n", completed)
	fmt.Fprintf(sb, "Status:         %s\n", statusText(e))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeCounters(sb *strings.Builder, e *model.Execution) {
	w.writeSection(sb, "SUMMARY")
	fmt.Fprintf(sb, "  URLs checked:     %d\n", e.URLsChecked)
	fmt.Fprintf(sb, "  Links found:      %d\n", e.LinksFound)
	fmt.Fprintf(sb, "  Links broken:     %d\n", e.LinksBroken)
	fmt.Fprintf(sb, "  New URLs:         %d\n", e.URLsNew)
	fmt.Fprintf(sb, "  Alerts:           %d\n", e.AlertsGenerated)
	if d := e.Duration(); d > 0 {
		fmt.Fprintf(sb, "  Duration:         %s\n", d.Round(1e6))
	}
	sb.WriteString("\n")
}

// writeAlerts writes alerts grouped by severity, critical first.
func (w *SimpleWriter) writeAlerts(sb *strings.Builder, report *Report) {
	if len(report.Alerts) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "ALERTS")

	for _, severity := range severitiesDesc {
		alerts := report.AlertsBySeverity(severity)
		if len(alerts) == 0 && !w.showEmpty {
			continue
		}

		fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), strings.ToUpper(severity.String()))
		if len(alerts) == 0 {
			sb.WriteString("  No alerts\n\n")
			continue
		}
		for _, a := range alerts {
			info := model.GetAlertInfo(a.Type)
			fmt.Fprintf(sb, "  * %s: %s\n", info.Title, a.URL)
			fmt.Fprintf(sb, "    %s\n", a.Message)
			if !a.Notified {
				sb.WriteString("    (not yet notified)\n")
			}
			if w.verbose {
				fmt.Fprintf(sb, "    Recommendation: %s\n", info.Recommendation)
			}
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeBrokenLinks(sb *strings.Builder, report *Report) {
	links := report.Validations
	if !w.verbose {
		links = report.BrokenLinks()
	}
	if len(links) == 0 && !w.showEmpty {
		return
	}

	if w.verbose {
		w.writeSection(sb, "LINK VALIDATIONS")
	} else {
		w.writeSection(sb, "BROKEN LINKS")
	}
	if len(links) == 0 {
		sb.WriteString("  No broken links\n\n")
		return
	}
	for _, v := range links {
		mark := "ok"
		if v.IsBroken {
			mark = "BROKEN"
		}
		fmt.Fprintf(sb, "  [%s] %s", mark, v.URL)
		if v.StatusCode > 0 {
			fmt.Fprintf(sb, " (%d)", v.StatusCode)
		}
		sb.WriteString("\n")
		if v.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", v.Error)
		}
		if v.RedirectTarget != "" {
			fmt.Fprintf(sb, "    Redirects to: %s\n", v.RedirectTarget)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeURLDeltas(sb *strings.Builder, report *Report) {
	if len(report.URLDeltas) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "URL CHANGES")
	if len(report.URLDeltas) == 0 {
		sb.WriteString("  No URL changes\n\n")
		return
	}
	for _, d := range report.URLDeltas {
		sign := "+"
		if d.Type == model.DeltaRemoved {
			sign = "-"
		}
		fmt.Fprintf(sb, "  [%s] %s\n", sign, d.URL)
		if w.verbose {
			fmt.Fprintf(sb, "      on %s\n", d.PageURL)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSemanticDeltas(sb *strings.Builder, report *Report) {
	if len(report.SemanticDeltas) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "CONTENT CHANGES")
	if len(report.SemanticDeltas) == 0 {
		sb.WriteString("  No content changes\n\n")
		return
	}
	for _, d := range report.SemanticDeltas {
		fmt.Fprintf(sb, "  * %s [%s]\n", d.URL, d.Impact)
		fmt.Fprintf(sb, "    Keywords: %s\n", strings.Join(d.DetectedKeywords, ", "))
		if d.Analysis != "" {
			fmt.Fprintf(sb, "    Analysis: %s\n", d.Analysis)
		}
	}
	sb.WriteString("\n")
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityCritical:
		return "!!!"
	case model.SeverityRelevant:
		return "!!"
	case model.SeverityMinor:
		return "!"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by driftwatch\n")
	sb.WriteString("https://github.com/nao1215/driftwatch\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
