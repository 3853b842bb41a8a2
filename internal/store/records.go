package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/driftwatch/internal/model"
)

type linkValidationRow struct {
	ExecutionID    string         `db:"execution_id"`
	URL            string         `db:"url"`
	StatusCode     sql.NullInt64  `db:"status_code"`
	ResponseTimeMS int64          `db:"response_time_ms"`
	IsBroken       bool           `db:"is_broken"`
	RedirectTarget sql.NullString `db:"redirect_target"`
	ErrorMessage   sql.NullString `db:"error_message"`
	CheckedAt      string         `db:"checked_at"`
}

// InsertLinkValidation appends a link validation result.
func (s *SQLStore) InsertLinkValidation(ctx context.Context, v *model.LinkValidation) error {
	status := sql.NullInt64{Int64: int64(v.StatusCode), Valid: v.StatusCode != 0}
	query := s.db.Rebind(`
	INSERT INTO link_validations (execution_id, url, status_code, response_time_ms, is_broken,
		redirect_target, error_message, checked_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		v.ExecutionID,
		v.URL,
		status,
		v.ResponseTime.Milliseconds(),
		v.IsBroken,
		nullString(v.RedirectTarget),
		nullString(v.Error),
		formatTime(v.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert link validation for %s: %w", v.URL, err)
	}
	return nil
}

// ListLinkValidations returns the link validations of an execution in insertion order.
func (s *SQLStore) ListLinkValidations(ctx context.Context, executionID string) ([]model.LinkValidation, error) {
	var rows []linkValidationRow
	query := s.db.Rebind(`
	SELECT execution_id, url, status_code, response_time_ms, is_broken, redirect_target, error_message, checked_at
	FROM link_validations WHERE execution_id = ? ORDER BY id
	`)
	if err := s.db.SelectContext(ctx, &rows, query, executionID); err != nil {
		return nil, fmt.Errorf("failed to list link validations: %w", err)
	}

	out := make([]model.LinkValidation, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.LinkValidation{
			ExecutionID:    r.ExecutionID,
			URL:            r.URL,
			StatusCode:     int(r.StatusCode.Int64),
			ResponseTime:   time.Duration(r.ResponseTimeMS) * time.Millisecond,
			IsBroken:       r.IsBroken,
			RedirectTarget: r.RedirectTarget.String,
			Error:          r.ErrorMessage.String,
			CheckedAt:      parseTimestamp(r.CheckedAt),
		})
	}
	return out, nil
}

type snapshotRow struct {
	Domain      string `db:"domain"`
	URL         string `db:"url"`
	ExecutionID string `db:"execution_id"`
	Fingerprint string `db:"fingerprint"`
	Links       string `db:"links"`
	Keywords    string `db:"keywords"`
	CapturedAt  string `db:"captured_at"`
}

// LatestSnapshot returns the newest snapshot of (domain, url).
// It returns nil, nil when the page was never captured.
func (s *SQLStore) LatestSnapshot(ctx context.Context, domain, url string) (*model.PageSnapshot, error) {
	var row snapshotRow
	query := s.db.Rebind(`
	SELECT domain, url, execution_id, fingerprint, links, keywords, captured_at
	FROM page_snapshots
	WHERE domain = ? AND url = ?
	ORDER BY captured_at DESC, id DESC
	LIMIT 1
	`)
	err := s.db.GetContext(ctx, &row, query, domain, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	links, err := decodeList(row.Links)
	if err != nil {
		return nil, err
	}
	keywords, err := decodeList(row.Keywords)
	if err != nil {
		return nil, err
	}
	return &model.PageSnapshot{
		Domain:      row.Domain,
		URL:         row.URL,
		ExecutionID: row.ExecutionID,
		Fingerprint: row.Fingerprint,
		Links:       links,
		Keywords:    keywords,
		CapturedAt:  parseTimestamp(row.CapturedAt),
	}, nil
}

// InsertSnapshot appends a snapshot. Earlier snapshots are kept as history.
func (s *SQLStore) InsertSnapshot(ctx context.Context, snap *model.PageSnapshot) error {
	query := s.db.Rebind(`
	INSERT INTO page_snapshots (domain, url, execution_id, fingerprint, links, keywords, captured_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		snap.Domain,
		snap.URL,
		snap.ExecutionID,
		snap.Fingerprint,
		encodeList(snap.Links),
		encodeList(snap.Keywords),
		formatTime(snap.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot for %s: %w", snap.URL, err)
	}
	return nil
}

type urlDeltaRow struct {
	ExecutionID   string         `db:"execution_id"`
	PageURL       string         `db:"page_url"`
	URL           string         `db:"url"`
	DeltaType     string         `db:"delta_type"`
	PreviousState sql.NullString `db:"previous_state"`
	CurrentState  sql.NullString `db:"current_state"`
	DetectedAt    string         `db:"detected_at"`
}

// InsertURLDelta appends a URL delta.
func (s *SQLStore) InsertURLDelta(ctx context.Context, d *model.URLDelta) error {
	query := s.db.Rebind(`
	INSERT INTO url_deltas (execution_id, page_url, url, delta_type, previous_state, current_state, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		d.ExecutionID,
		d.PageURL,
		d.URL,
		string(d.Type),
		nullString(d.PreviousState),
		nullString(d.CurrentState),
		formatTime(d.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert url delta for %s: %w", d.URL, err)
	}
	return nil
}

// ListURLDeltas returns the URL deltas of an execution in insertion order.
func (s *SQLStore) ListURLDeltas(ctx context.Context, executionID string) ([]model.URLDelta, error) {
	var rows []urlDeltaRow
	query := s.db.Rebind(`
	SELECT execution_id, page_url, url, delta_type, previous_state, current_state, detected_at
	FROM url_deltas WHERE execution_id = ? ORDER BY id
	`)
	if err := s.db.SelectContext(ctx, &rows, query, executionID); err != nil {
		return nil, fmt.Errorf("failed to list url deltas: %w", err)
	}

	out := make([]model.URLDelta, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.URLDelta{
			ExecutionID:   r.ExecutionID,
			PageURL:       r.PageURL,
			URL:           r.URL,
			Type:          model.DeltaType(r.DeltaType),
			PreviousState: r.PreviousState.String,
			CurrentState:  r.CurrentState.String,
			DetectedAt:    parseTimestamp(r.DetectedAt),
		})
	}
	return out, nil
}

type semanticDeltaRow struct {
	ExecutionID      string         `db:"execution_id"`
	URL              string         `db:"url"`
	PreviousKeywords string         `db:"previous_keywords"`
	DetectedKeywords string         `db:"detected_keywords"`
	ImpactLevel      string         `db:"impact_level"`
	Analysis         sql.NullString `db:"llm_analysis"`
	DetectedAt       string         `db:"detected_at"`
}

// InsertSemanticDelta appends a semantic delta.
func (s *SQLStore) InsertSemanticDelta(ctx context.Context, d *model.SemanticDelta) error {
	query := s.db.Rebind(`
	INSERT INTO semantic_deltas (execution_id, url, previous_keywords, detected_keywords, impact_level, llm_analysis, detected_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		d.ExecutionID,
		d.URL,
		encodeList(d.PreviousKeywords),
		encodeList(d.DetectedKeywords),
		d.Impact.String(),
		nullString(d.Analysis),
		formatTime(d.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert semantic delta for %s: %w", d.URL, err)
	}
	return nil
}

// ListSemanticDeltas returns the semantic deltas of an execution in insertion order.
func (s *SQLStore) ListSemanticDeltas(ctx context.Context, executionID string) ([]model.SemanticDelta, error) {
	var rows []semanticDeltaRow
	query := s.db.Rebind(`
	SELECT execution_id, url, previous_keywords, detected_keywords, impact_level, llm_analysis, detected_at
	FROM semantic_deltas WHERE execution_id = ? ORDER BY id
	`)
	if err := s.db.SelectContext(ctx, &rows, query, executionID); err != nil {
		return nil, fmt.Errorf("failed to list semantic deltas: %w", err)
	}

	out := make([]model.SemanticDelta, 0, len(rows))
	for _, r := range rows {
		prev, err := decodeList(r.PreviousKeywords)
		if err != nil {
			return nil, err
		}
		cur, err := decodeList(r.DetectedKeywords)
		if err != nil {
			return nil, err
		}
		impact, err := model.ParseImpactLevel(r.ImpactLevel)
		if err != nil {
			return nil, fmt.Errorf("semantic delta for %s: %w", r.URL, err)
		}
		out = append(out, model.SemanticDelta{
			ExecutionID:      r.ExecutionID,
			URL:              r.URL,
			PreviousKeywords: prev,
			DetectedKeywords: cur,
			Impact:           impact,
			Analysis:         r.Analysis.String,
			DetectedAt:       parseTimestamp(r.DetectedAt),
		})
	}
	return out, nil
}
