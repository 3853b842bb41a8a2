package log

import (
	"io"
	"log/slog"

	slogmulti "github.com/samber/slog-multi"
)

// NewFanoutLogger creates a logger writing sanitized text to console and
// sanitized JSON to file. Sanitization happens once, before the fan-out,
// so both outputs see the same redacted record.
func NewFanoutLogger(console, file io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	textHandler := slog.NewTextHandler(console, opts)
	jsonHandler := slog.NewJSONHandler(file, opts)
	return slog.New(NewSecureHandler(slogmulti.Fanout(textHandler, jsonHandler)))
}
