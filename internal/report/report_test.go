package report

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/driftwatch/internal/model"
)

type fakeReader struct {
	report    *Report
	alertsErr error
}

func (f *fakeReader) GetExecution(_ context.Context, id string) (*model.Execution, error) {
	if f.report == nil || f.report.Execution.ID != id {
		return nil, errors.New("not found")
	}
	return f.report.Execution, nil
}

func (f *fakeReader) ListLinkValidations(context.Context, string) ([]model.LinkValidation, error) {
	return f.report.Validations, nil
}

func (f *fakeReader) ListURLDeltas(context.Context, string) ([]model.URLDelta, error) {
	return f.report.URLDeltas, nil
}

func (f *fakeReader) ListSemanticDeltas(context.Context, string) ([]model.SemanticDelta, error) {
	return f.report.SemanticDeltas, nil
}

func (f *fakeReader) ListAlerts(context.Context, string) ([]model.Alert, error) {
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	return f.report.Alerts, nil
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("gathers every record of the execution", func(t *testing.T) {
		t.Parallel()

		want := createTestReport()
		got, err := Load(context.Background(), &fakeReader{report: want}, want.Execution.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Execution != want.Execution {
			t.Error("expected the stored execution")
		}
		if len(got.Validations) != 2 || len(got.URLDeltas) != 1 || len(got.SemanticDeltas) != 1 || len(got.Alerts) != 3 {
			t.Errorf("unexpected record counts: %d %d %d %d",
				len(got.Validations), len(got.URLDeltas), len(got.SemanticDeltas), len(got.Alerts))
		}
	})

	t.Run("unknown execution is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := Load(context.Background(), &fakeReader{report: createTestReport()}, "missing"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("read failure is wrapped", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		r := createTestReport()
		_, err := Load(context.Background(), &fakeReader{report: r, alertsErr: errBoom}, r.Execution.ID)
		if !errors.Is(err, errBoom) {
			t.Fatalf("got %v, want wrapped %v", err, errBoom)
		}
	})
}
