package store

import (
	"context"
	"time"

	"github.com/nao1215/driftwatch/internal/model"
)

// Store is the persistence used by driftwatch.
type Store interface {
	UpsertScout(ctx context.Context, scout *model.Scout) error
	GetScout(ctx context.Context, name string) (*model.Scout, error)
	ListScouts(ctx context.Context) ([]*model.Scout, error)
	SetScoutEnabled(ctx context.Context, name string, enabled bool) error
	SetLastExecution(ctx context.Context, scoutID, executionID string) error

	CreateExecution(ctx context.Context, exec *model.Execution) error
	UpdateExecution(ctx context.Context, exec *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListExecutions(ctx context.Context, domain string, limit int) ([]*model.Execution, error)

	InsertLinkValidation(ctx context.Context, v *model.LinkValidation) error
	ListLinkValidations(ctx context.Context, executionID string) ([]model.LinkValidation, error)

	LatestSnapshot(ctx context.Context, domain, url string) (*model.PageSnapshot, error)
	InsertSnapshot(ctx context.Context, snap *model.PageSnapshot) error

	InsertURLDelta(ctx context.Context, d *model.URLDelta) error
	ListURLDeltas(ctx context.Context, executionID string) ([]model.URLDelta, error)
	InsertSemanticDelta(ctx context.Context, d *model.SemanticDelta) error
	ListSemanticDeltas(ctx context.Context, executionID string) ([]model.SemanticDelta, error)

	InsertAlert(ctx context.Context, a *model.Alert) error
	ListAlerts(ctx context.Context, executionID string) ([]model.Alert, error)
	PendingAlerts(ctx context.Context, minSeverity model.Severity, limit int) ([]model.Alert, error)
	MarkAlertNotified(ctx context.Context, id int64, at time.Time) error

	Close() error
}

var _ Store = (*SQLStore)(nil)
