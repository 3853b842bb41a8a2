package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/nao1215/driftwatch/internal/model"
	"github.com/nao1215/markdown"
)

// TextBody renders an alert as markdown, readable as plain text.
func TextBody(alert model.Alert) (string, error) {
	info := model.GetAlertInfo(alert.Type)
	url := alert.URL
	if url == "" {
		url = "-"
	}

	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)
	md.H2(info.Title)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Severity", alert.Severity.String()},
			{"Type", string(alert.Type)},
			{"URL", url},
			{"Execution", alert.ExecutionID},
			{"Detected", alert.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")
	md.PlainText(alert.Message)
	md.PlainText("")
	md.Note(info.Recommendation)
	if err := md.Build(); err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return buf.String(), nil
}

var htmlBody = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
<h2 style="color: {{.Color}}">{{.Title}}</h2>
<table cellpadding="4">
<tr><td><b>Severity</b></td><td>{{.Severity}}</td></tr>
<tr><td><b>Type</b></td><td>{{.Type}}</td></tr>
{{if .URL}}<tr><td><b>URL</b></td><td><a href="{{.URL}}">{{.URL}}</a></td></tr>{{end}}
<tr><td><b>Execution</b></td><td>{{.ExecutionID}}</td></tr>
<tr><td><b>Detected</b></td><td>{{.Detected}}</td></tr>
</table>
<p>{{.Message}}</p>
<p><i>{{.Recommendation}}</i></p>
</body>
</html>
`))

var severityColors = map[model.Severity]string{
	model.SeverityCritical: "#c0392b",
	model.SeverityRelevant: "#d35400",
	model.SeverityMinor:    "#b7950b",
	model.SeverityInfo:     "#2471a3",
}

// HTMLBody renders an alert as an HTML email.
func HTMLBody(alert model.Alert) (string, error) {
	info := model.GetAlertInfo(alert.Type)
	color, ok := severityColors[alert.Severity]
	if !ok {
		color = "#000000"
	}

	var buf bytes.Buffer
	err := htmlBody.Execute(&buf, map[string]string{
		"Color":          color,
		"Title":          info.Title,
		"Severity":       alert.Severity.String(),
		"Type":           string(alert.Type),
		"URL":            alert.URL,
		"ExecutionID":    alert.ExecutionID,
		"Detected":       alert.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		"Message":        alert.Message,
		"Recommendation": info.Recommendation,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return buf.String(), nil
}
