package report

import (
	"io"

	"github.com/nao1215/driftwatch/internal/model"
)

// Writer renders reports.
type Writer interface {
	// Write outputs one execution report.
	Write(report *Report) (int, error)

	// WriteHistory outputs a list of executions, most recent first.
	WriteHistory(execs []*model.Execution) (int, error)
}

// MultiWriter writes to multiple Writers, for instance a terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every writer and stops on the first error.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the history to every writer and stops on the first error.
func (m *MultiWriter) WriteHistory(execs []*model.Execution) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(execs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeFormat = "2006-01-02 15:04:05 MST"

// executionTimes formats the start and completion times of an execution.
// A running execution has "-" as completion time.
func executionTimes(e *model.Execution) (started, completed string) {
	started = e.StartedAt.Local().Format(timeFormat)
	completed = "-"
	if e.CompletedAt != nil {
		completed = e.CompletedAt.Local().Format(timeFormat)
	}
	return started, completed
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
