package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format for sharing in issues
// or chat. Alerts are rendered as GitHub-flavored alert blocks.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report.Execution)
	w.writeSummary(md, report)
	w.writeAlerts(md, report)
	w.writeBrokenLinks(md, report)
	w.writeURLDeltas(md, report)
	w.writeSemanticDeltas(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs the executions as a table.
func (w *MarkdownWriter) WriteHistory(execs []*model.Execution) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Execution History")
	md.PlainText("")

	if len(execs) == 0 {
		md.PlainText("No executions recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(execs))
	for _, e := range execs {
		started, _ := executionTimes(e)
		rows = append(rows, []string{
			"`" + e.ID + "`",
			statusEmoji(e.Status) + " " + string(e.Status),
			started,
			strconv.Itoa(e.URLsChecked),
			strconv.Itoa(e.LinksBroken),
			strconv.Itoa(e.AlertsGenerated),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Execution", "Status", "Started", "URLs", "Broken", "Alerts"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, e *model.Execution) {
	md.H1("Driftwatch Execution: " + e.Domain)
	md.PlainText("")

	started, completed := executionTimes(e)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Execution", "`" + e.ID + "`"},
			{"Scout", e.ScoutID},
			{"Spec Version", e.SpecVersion},
			{"Started", started},
			{"Completed", completed},
			{"Status", statusEmoji(e.Status) + " " + statusText(e)},
		},
	})
	md.PlainText("")
}

func statusEmoji(s model.ExecutionStatus) string {
	switch s {
	case model.StatusCompleted:
		return "✅"
	case model.StatusFailed:
		return "❌"
	default:
		return "⏳"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *Report) {
	e := report.Execution
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"URLs checked", strconv.Itoa(e.URLsChecked)},
			{"Links found", strconv.Itoa(e.LinksFound)},
			{"Links broken", strconv.Itoa(e.LinksBroken)},
			{"New URLs", strconv.Itoa(e.URLsNew)},
			{"**Alerts**", "**" + strconv.Itoa(e.AlertsGenerated) + "**"},
		},
	})
	md.PlainText("")

	if len(report.Alerts) > 0 {
		w.writePieChart(md, report)
	}
	w.writeCallout(md, report)
}

// writePieChart writes a mermaid pie chart of alert severities.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Alert Severity Distribution"),
		piechart.WithShowData(true),
	)
	for _, s := range severitiesDesc {
		if n := len(report.AlertsBySeverity(s)); n > 0 {
			chart.LabelAndIntValue(severityLabel(s), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeCallout(md *markdown.Markdown, report *Report) {
	critical := len(report.AlertsBySeverity(model.SeverityCritical))
	relevant := len(report.AlertsBySeverity(model.SeverityRelevant))

	switch {
	case report.Execution.Status == model.StatusFailed:
		md.Cautionf("The execution failed: %s", report.Execution.Error)
	case critical > 0:
		md.Cautionf("%d critical alert(s) need immediate attention.", critical)
	case relevant > 0:
		md.Warningf("%d relevant alert(s) should be reviewed.", relevant)
	case len(report.Alerts) > 0:
		md.Note("Only minor and informational changes detected.")
	default:
		md.Tip("No drift detected.")
	}
	md.PlainText("")

	if pending := report.PendingAlerts(); pending > 0 {
		md.Importantf("%d alert(s) are not yet notified. Run `driftwatch notify` to retry delivery.", pending)
		md.PlainText("")
	}
}

func severityLabel(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "Critical"
	case model.SeverityRelevant:
		return "Relevant"
	case model.SeverityMinor:
		return "Minor"
	default:
		return "Info"
	}
}

var severityHeaders = map[model.Severity]string{
	model.SeverityCritical: "### 🔴 Critical",
	model.SeverityRelevant: "### 🟠 Relevant",
	model.SeverityMinor:    "### 🟡 Minor",
	model.SeverityInfo:     "### ⚪ Info",
}

func (w *MarkdownWriter) writeAlerts(md *markdown.Markdown, report *Report) {
	md.H2("Alerts")
	md.PlainText("")

	if len(report.Alerts) == 0 {
		md.PlainText("No alerts raised.")
		md.PlainText("")
		return
	}

	for _, s := range severitiesDesc {
		alerts := report.AlertsBySeverity(s)
		if len(alerts) == 0 {
			continue
		}
		md.PlainText(severityHeaders[s])
		md.PlainText("")

		rows := make([][]string, len(alerts))
		for i, a := range alerts {
			notified := "no"
			if a.Notified {
				notified = "yes"
			}
			rows[i] = []string{
				model.GetAlertInfo(a.Type).Title,
				truncateString(a.URL, 60),
				truncateString(a.Message, 80),
				notified,
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Type", "URL", "Message", "Notified"},
			Rows:   rows,
		})
		md.PlainText("")

		seen := make(map[model.AlertType]bool)
		for _, a := range alerts {
			if seen[a.Type] {
				continue
			}
			seen[a.Type] = true
			info := model.GetAlertInfo(a.Type)
			md.Details(info.Title, info.Recommendation)
		}
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeBrokenLinks(md *markdown.Markdown, report *Report) {
	broken := report.BrokenLinks()
	if len(broken) == 0 {
		return
	}

	md.H2("Broken Links")
	md.PlainText("")
	rows := make([][]string, len(broken))
	for i, v := range broken {
		status := "-"
		if v.StatusCode > 0 {
			status = strconv.Itoa(v.StatusCode)
		}
		errText := v.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			truncateString(v.URL, 60),
			status,
			truncateString(errText, 60),
			v.ResponseTime.Round(1e6).String(),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error", "Response Time"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeURLDeltas(md *markdown.Markdown, report *Report) {
	if len(report.URLDeltas) == 0 {
		return
	}

	md.H2("URL Changes")
	md.PlainText("")
	items := make([]string, len(report.URLDeltas))
	for i, d := range report.URLDeltas {
		items[i] = fmt.Sprintf("**%s** `%s` on %s", d.Type, d.URL, d.PageURL)
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeSemanticDeltas(md *markdown.Markdown, report *Report) {
	if len(report.SemanticDeltas) == 0 {
		return
	}

	md.H2("Content Changes")
	md.PlainText("")
	for _, d := range report.SemanticDeltas {
		md.PlainText(fmt.Sprintf("### %s (%s)", d.URL, d.Impact))
		md.PlainText("")
		md.BulletList(
			"Previous keywords: "+strings.Join(d.PreviousKeywords, ", "),
			"Detected keywords: "+strings.Join(d.DetectedKeywords, ", "),
		)
		md.PlainText("")
		if d.Analysis != "" {
			md.Details("Analysis", d.Analysis)
			md.PlainText("")
		}
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [driftwatch](https://github.com/nao1215/driftwatch)*")
}
