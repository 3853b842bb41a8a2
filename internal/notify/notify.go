package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/driftwatch/internal/model"
)

// ErrNoRecipients is returned when an alert has nobody to be sent to.
var ErrNoRecipients = errors.New("no recipients for alert")

// Notifier sends an alert and returns the delivery id assigned by the channel.
type Notifier interface {
	Send(ctx context.Context, alert model.Alert) (string, error)
}

// RecipientResolver returns the addresses an alert must be sent to.
type RecipientResolver interface {
	Recipients(ctx context.Context, alert model.Alert) ([]string, error)
}

// StaticRecipients sends every alert to the same addresses.
type StaticRecipients []string

// Recipients implements RecipientResolver.
func (s StaticRecipients) Recipients(context.Context, model.Alert) ([]string, error) {
	return s, nil
}

// Log writes alerts to a logger. It is the default notifier.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Send implements Notifier.
func (l *Log) Send(ctx context.Context, alert model.Alert) (string, error) {
	level := slog.LevelInfo
	if alert.Severity >= model.SeverityRelevant {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "alert",
		"execution_id", alert.ExecutionID,
		"type", string(alert.Type),
		"severity", alert.Severity.String(),
		"url", alert.URL,
		"message", alert.Message,
	)
	return fmt.Sprintf("log-%d", alert.ID), nil
}

// Multi sends every alert through all of its notifiers. The alert counts as
// delivered only when every notifier accepted it.
type Multi []Notifier

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, alert model.Alert) (string, error) {
	ids := make([]string, 0, len(m))
	var errs []error
	for _, n := range m {
		id, err := n.Send(ctx, alert)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return "", err
	}
	return strings.Join(ids, ","), nil
}

// Subject returns the subject line used for an alert.
func Subject(alert model.Alert) string {
	info := model.GetAlertInfo(alert.Type)
	subject := fmt.Sprintf("[driftwatch][%s] %s", strings.ToUpper(alert.Severity.String()), info.Title)
	if alert.URL != "" {
		subject += ": " + alert.URL
	}
	return subject
}
