package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/driftwatch/internal/model"
)

type executionRow struct {
	ID              string         `db:"id"`
	ScoutID         string         `db:"scout_id"`
	Domain          string         `db:"domain"`
	SpecVersion     string         `db:"spec_version"`
	Status          string         `db:"status"`
	StartedAt       string         `db:"started_at"`
	CompletedAt     sql.NullString `db:"completed_at"`
	URLsChecked     int            `db:"urls_checked"`
	LinksFound      int            `db:"links_found"`
	LinksBroken     int            `db:"links_broken"`
	URLsNew         int            `db:"urls_new"`
	AlertsGenerated int            `db:"alerts_generated"`
	ErrorMessage    sql.NullString `db:"error_message"`
}

const executionColumns = `id, scout_id, domain, spec_version, status, started_at, completed_at,
	urls_checked, links_found, links_broken, urls_new, alerts_generated, error_message`

func (r *executionRow) toModel() *model.Execution {
	e := &model.Execution{
		ID:          r.ID,
		ScoutID:     r.ScoutID,
		Domain:      r.Domain,
		SpecVersion: r.SpecVersion,
		Status:      model.ExecutionStatus(r.Status),
		StartedAt:   parseTimestamp(r.StartedAt),
		Error:       r.ErrorMessage.String,
		Counters: model.Counters{
			URLsChecked:     r.URLsChecked,
			LinksFound:      r.LinksFound,
			LinksBroken:     r.LinksBroken,
			URLsNew:         r.URLsNew,
			AlertsGenerated: r.AlertsGenerated,
		},
	}
	if r.CompletedAt.Valid {
		t := parseTimestamp(r.CompletedAt.String)
		e.CompletedAt = &t
	}
	return e
}

func nullTime(e *model.Execution) sql.NullString {
	if e.CompletedAt == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*e.CompletedAt), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateExecution inserts a new execution record.
func (s *SQLStore) CreateExecution(ctx context.Context, exec *model.Execution) error {
	query := s.db.Rebind(`
	INSERT INTO executions (id, scout_id, domain, spec_version, status, started_at, completed_at,
		urls_checked, links_found, links_broken, urls_new, alerts_generated, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		exec.ID,
		exec.ScoutID,
		exec.Domain,
		exec.SpecVersion,
		string(exec.Status),
		formatTime(exec.StartedAt),
		nullTime(exec),
		exec.Counters.URLsChecked,
		exec.Counters.LinksFound,
		exec.Counters.LinksBroken,
		exec.Counters.URLsNew,
		exec.Counters.AlertsGenerated,
		nullString(exec.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

// UpdateExecution writes the status, completion time, counters and error of
// a running execution. Terminal executions are never modified.
func (s *SQLStore) UpdateExecution(ctx context.Context, exec *model.Execution) error {
	query := s.db.Rebind(`
	UPDATE executions SET
		status = ?,
		completed_at = ?,
		urls_checked = ?,
		links_found = ?,
		links_broken = ?,
		urls_new = ?,
		alerts_generated = ?,
		error_message = ?
	WHERE id = ? AND status = ?
	`)
	res, err := s.db.ExecContext(ctx, query,
		string(exec.Status),
		nullTime(exec),
		exec.Counters.URLsChecked,
		exec.Counters.LinksFound,
		exec.Counters.LinksBroken,
		exec.Counters.URLsNew,
		exec.Counters.AlertsGenerated,
		nullString(exec.Error),
		exec.ID,
		string(model.StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetExecution(ctx, exec.ID); err != nil {
		return err
	}
	return fmt.Errorf("execution %s: %w", exec.ID, ErrNotRunning)
}

// GetExecution returns the execution with the given id.
func (s *SQLStore) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	var row executionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+executionColumns+` FROM executions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}
	return row.toModel(), nil
}

// ListExecutions returns the most recent executions, newest first.
// An empty domain lists executions of every domain. limit <= 0 means no limit.
func (s *SQLStore) ListExecutions(ctx context.Context, domain string, limit int) ([]*model.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE 1=1`
	args := make([]any, 0, 2)
	if domain != "" {
		query += " AND domain = ?"
		args = append(args, domain)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []executionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	execs := make([]*model.Execution, 0, len(rows))
	for i := range rows {
		execs = append(execs, rows[i].toModel())
	}
	return execs, nil
}
