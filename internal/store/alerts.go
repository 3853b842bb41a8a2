package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nao1215/driftwatch/internal/model"
)

type alertRow struct {
	ID          int64          `db:"id"`
	ExecutionID string         `db:"execution_id"`
	AlertType   string         `db:"alert_type"`
	Severity    string         `db:"severity"`
	URL         string         `db:"url"`
	Message     string         `db:"message"`
	Notified    bool           `db:"notified"`
	NotifiedAt  sql.NullString `db:"notified_at"`
	CreatedAt   string         `db:"created_at"`
}

const alertColumns = `id, execution_id, alert_type, severity, url, message, notified, notified_at, created_at`

func (r *alertRow) toModel() (model.Alert, error) {
	sev, err := model.ParseSeverity(r.Severity)
	if err != nil {
		return model.Alert{}, fmt.Errorf("alert %d: %w", r.ID, err)
	}
	a := model.Alert{
		ID:          r.ID,
		ExecutionID: r.ExecutionID,
		Type:        model.AlertType(r.AlertType),
		Severity:    sev,
		URL:         r.URL,
		Message:     r.Message,
		Notified:    r.Notified,
		CreatedAt:   parseTimestamp(r.CreatedAt),
	}
	if r.NotifiedAt.Valid {
		t := parseTimestamp(r.NotifiedAt.String)
		a.NotifiedAt = &t
	}
	return a, nil
}

// InsertAlert persists a not yet notified alert and sets its ID.
// CreatedAt is filled in when zero.
func (s *SQLStore) InsertAlert(ctx context.Context, a *model.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	query := s.db.Rebind(`
	INSERT INTO alerts (execution_id, alert_type, severity, url, message, notified, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		a.ExecutionID,
		string(a.Type),
		a.Severity.String(),
		a.URL,
		a.Message,
		false,
		formatTime(a.CreatedAt),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert alert for %s: %w", a.URL, err)
	}
	a.ID = id
	a.Notified = false
	a.NotifiedAt = nil
	return nil
}

// ListAlerts returns the alerts of an execution in insertion order.
func (s *SQLStore) ListAlerts(ctx context.Context, executionID string) ([]model.Alert, error) {
	return s.selectAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE execution_id = ? ORDER BY id`, executionID)
}

// PendingAlerts returns up to limit alerts of at least minSeverity that were
// never notified, oldest first. limit <= 0 means no limit.
func (s *SQLStore) PendingAlerts(ctx context.Context, minSeverity model.Severity, limit int) ([]model.Alert, error) {
	var severities []string
	for sev := minSeverity; sev <= model.SeverityCritical; sev++ {
		severities = append(severities, sev.String())
	}
	if len(severities) == 0 {
		return nil, nil
	}

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE notified = ? AND severity IN (?) ORDER BY created_at, id`
	args := []any{false, severities}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to build pending alerts query: %w", err)
	}
	return s.selectAlerts(ctx, query, args...)
}

func (s *SQLStore) selectAlerts(ctx context.Context, query string, args ...any) ([]model.Alert, error) {
	var rows []alertRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := make([]model.Alert, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// MarkAlertNotified records a successful notification. Already notified
// alerts keep their original notification time.
func (s *SQLStore) MarkAlertNotified(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE alerts SET notified = ?, notified_at = ? WHERE id = ? AND notified = ?`),
		true, formatTime(at), id, false)
	if err != nil {
		return fmt.Errorf("failed to mark alert %d notified: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) FROM alerts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to look up alert %d: %w", id, err)
	}
	if exists == 0 {
		return fmt.Errorf("alert %d: %w", id, ErrNotFound)
	}
	return nil
}
