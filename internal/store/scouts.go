package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/driftwatch/internal/model"
)

type scoutRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Domain            string         `db:"domain"`
	CriticalURLs      string         `db:"critical_urls"`
	ExpectedKeywords  string         `db:"expected_keywords"`
	SensitiveKeywords string         `db:"sensitive_keywords"`
	StructuralPaths   string         `db:"structural_paths"`
	NotifyTo          string         `db:"notify_to"`
	Frequency         string         `db:"frequency"`
	Enabled           bool           `db:"enabled"`
	LastExecutionID   sql.NullString `db:"last_execution_id"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

const scoutColumns = `id, name, domain, critical_urls, expected_keywords, sensitive_keywords,
	structural_paths, notify_to, frequency, enabled, last_execution_id, created_at, updated_at`

func (r *scoutRow) toModel() (*model.Scout, error) {
	s := &model.Scout{
		ID:              r.ID,
		Name:            r.Name,
		Domain:          r.Domain,
		Frequency:       r.Frequency,
		Enabled:         r.Enabled,
		LastExecutionID: r.LastExecutionID.String,
		CreatedAt:       parseTimestamp(r.CreatedAt),
		UpdatedAt:       parseTimestamp(r.UpdatedAt),
	}
	lists := []struct {
		raw string
		dst *[]string
	}{
		{r.CriticalURLs, &s.CriticalURLs},
		{r.ExpectedKeywords, &s.ExpectedKeywords},
		{r.SensitiveKeywords, &s.SensitiveKeywords},
		{r.StructuralPaths, &s.StructuralPaths},
		{r.NotifyTo, &s.NotifyTo},
	}
	for _, l := range lists {
		items, err := decodeList(l.raw)
		if err != nil {
			return nil, fmt.Errorf("scout %s: %w", r.Name, err)
		}
		*l.dst = items
	}
	return s, nil
}

// UpsertScout inserts a scout or updates the configuration of the scout with
// the same name. The enabled flag of an existing scout is left untouched so
// that enabling and disabling survive a re-sync.
func (s *SQLStore) UpsertScout(ctx context.Context, scout *model.Scout) error {
	now := formatTime(s.now())
	query := s.db.Rebind(`
	INSERT INTO scouts (id, name, domain, critical_urls, expected_keywords, sensitive_keywords,
		structural_paths, notify_to, frequency, enabled, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		domain = excluded.domain,
		critical_urls = excluded.critical_urls,
		expected_keywords = excluded.expected_keywords,
		sensitive_keywords = excluded.sensitive_keywords,
		structural_paths = excluded.structural_paths,
		notify_to = excluded.notify_to,
		frequency = excluded.frequency,
		updated_at = excluded.updated_at
	`)

	_, err := s.db.ExecContext(ctx, query,
		scout.ID,
		scout.Name,
		scout.Domain,
		encodeList(scout.CriticalURLs),
		encodeList(scout.ExpectedKeywords),
		encodeList(scout.SensitiveKeywords),
		encodeList(scout.StructuralPaths),
		encodeList(scout.NotifyTo),
		scout.Frequency,
		scout.Enabled,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert scout %s: %w", scout.Name, err)
	}
	return nil
}

// GetScout returns the scout named name.
func (s *SQLStore) GetScout(ctx context.Context, name string) (*model.Scout, error) {
	var row scoutRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+scoutColumns+` FROM scouts WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scout %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scout %s: %w", name, err)
	}
	return row.toModel()
}

// ListScouts returns all scouts ordered by name.
func (s *SQLStore) ListScouts(ctx context.Context) ([]*model.Scout, error) {
	var rows []scoutRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+scoutColumns+` FROM scouts ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list scouts: %w", err)
	}

	scouts := make([]*model.Scout, 0, len(rows))
	for i := range rows {
		scout, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		scouts = append(scouts, scout)
	}
	return scouts, nil
}

// SetScoutEnabled enables or disables the scout named name.
func (s *SQLStore) SetScoutEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE scouts SET enabled = ?, updated_at = ? WHERE name = ?`),
		enabled, formatTime(s.now()), name)
	if err != nil {
		return fmt.Errorf("failed to update scout %s: %w", name, err)
	}
	return expectOneRow(res, "scout "+name)
}

// SetLastExecution records the latest terminal execution of a scout.
func (s *SQLStore) SetLastExecution(ctx context.Context, scoutID, executionID string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE scouts SET last_execution_id = ?, updated_at = ? WHERE id = ?`),
		executionID, formatTime(s.now()), scoutID)
	if err != nil {
		return fmt.Errorf("failed to update scout %s: %w", scoutID, err)
	}
	return expectOneRow(res, "scout "+scoutID)
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
