package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
)

// resetInstruments resets the sync.Once so initInstruments re-runs against
// the current (noop) global MeterProvider during tests.
func resetInstruments(t *testing.T) {
	t.Helper()
	instOnce = sync.Once{}
	t.Cleanup(func() { instOnce = sync.Once{} })
}

func TestStatusStr(t *testing.T) {
	if got := statusStr(nil); got != "ok" {
		t.Errorf("statusStr(nil) = %q, want \"ok\"", got)
	}
	if got := statusStr(errors.New("boom")); got != "error" {
		t.Errorf("statusStr(err) = %q, want \"error\"", got)
	}
}

func TestSeverity_Nil(t *testing.T) {
	if got := severity(nil); got != otellog.SeverityInfo {
		t.Errorf("severity(nil) = %v, want SeverityInfo", got)
	}
}

func TestSeverity_Error(t *testing.T) {
	if got := severity(errors.New("err")); got != otellog.SeverityError {
		t.Errorf("severity(err) = %v, want SeverityError", got)
	}
}

func TestErrKV_Nil(t *testing.T) {
	kv := errKV(nil)
	if kv.Value.AsString() != "" {
		t.Errorf("errKV(nil) value = %q, want empty", kv.Value.AsString())
	}
}

func TestErrKV_NonNil(t *testing.T) {
	kv := errKV(errors.New("test error"))
	if kv.Value.AsString() != "test error" {
		t.Errorf("errKV(err) value = %q, want %q", kv.Value.AsString(), "test error")
	}
}

// Record helpers must be safe against the default noop providers.
func TestRecordHelpersNoopProviders(t *testing.T) {
	resetInstruments(t)
	ctx := context.Background()
	RecordInstall(ctx, "style-guide", "1.0.0", nil)
	RecordSave(ctx, "style-guide", "1.0.1-abc.def", errors.New("boom"))
	RecordPush(ctx, "style-guide", "1.0.1", nil)
	RecordVersionConflict(ctx, "shared", []string{"^1.0.0", "^2.0.0"})
	RecordResolveDuration(ctx, "core", 12.5, nil)
}

func TestInitDisabledWithoutEnv(t *testing.T) {
	t.Setenv(EnvMetricsURL, "")
	shutdown, err := Init(context.Background(), "test")
	if err != nil {
		t.Fatalf("Init(): %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
