// Package telemetry — recorder.go
// Recording helpers for alembic telemetry events. Each function emits
// both an OTel log event and increments a metric counter.
package telemetry

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterRecorderName = "github.com/alembic-run/alembic"
	loggerName        = "alembic"
)

// recorderInstruments holds all lazy-initialized OTel metric instruments.
type recorderInstruments struct {
	installTotal  metric.Int64Counter
	saveTotal     metric.Int64Counter
	pushTotal     metric.Int64Counter
	conflictTotal metric.Int64Counter

	resolveDurationHist metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     recorderInstruments
)

// initInstruments registers all recorder metric instruments against the
// current global MeterProvider. Must be called after telemetry.Init so
// the real provider is set. Also called lazily on first use as a safety
// net.
func initInstruments() {
	instOnce.Do(func() {
		m := otel.GetMeterProvider().Meter(meterRecorderName)

		inst.installTotal, _ = m.Int64Counter("alembic.installs.total",
			metric.WithDescription("Total formula install attempts"),
		)
		inst.saveTotal, _ = m.Int64Counter("alembic.saves.total",
			metric.WithDescription("Total formula save attempts"),
		)
		inst.pushTotal, _ = m.Int64Counter("alembic.pushes.total",
			metric.WithDescription("Total formula publish attempts"),
		)
		inst.conflictTotal, _ = m.Int64Counter("alembic.version_conflicts.total",
			metric.WithDescription("Total version conflicts raised during resolution"),
		)

		inst.resolveDurationHist, _ = m.Float64Histogram("alembic.resolve.duration_ms",
			metric.WithDescription("Dependency resolution latency in milliseconds"),
			metric.WithUnit("ms"),
		)
	})
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// emit sends an OTel log event with the given body and key-value attributes.
func emit(ctx context.Context, body string, sev otellog.Severity, attrs ...otellog.KeyValue) {
	logger := global.GetLoggerProvider().Logger(loggerName)
	var r otellog.Record
	r.SetBody(otellog.StringValue(body))
	r.SetSeverity(sev)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}

// errKV returns a log KeyValue with the error message, or empty string if nil.
func errKV(err error) otellog.KeyValue {
	if err != nil {
		return otellog.String("error", err.Error())
	}
	return otellog.String("error", "")
}

// severity returns SeverityInfo on success, SeverityError on failure.
func severity(err error) otellog.Severity {
	if err != nil {
		return otellog.SeverityError
	}
	return otellog.SeverityInfo
}

// RecordInstall records a formula install attempt (metrics + log event).
func RecordInstall(ctx context.Context, formula, version string, err error) {
	initInstruments()
	status := statusStr(err)
	inst.installTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("formula", formula),
			attribute.String("status", status),
		),
	)
	emit(ctx, "formula.install", severity(err),
		otellog.String("formula", formula),
		otellog.String("version", version),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordSave records a formula save attempt (metrics + log event).
func RecordSave(ctx context.Context, formula, version string, err error) {
	initInstruments()
	status := statusStr(err)
	inst.saveTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("formula", formula),
			attribute.String("status", status),
		),
	)
	emit(ctx, "formula.save", severity(err),
		otellog.String("formula", formula),
		otellog.String("version", version),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordPush records a formula publish attempt (metrics + log event).
func RecordPush(ctx context.Context, formula, version string, err error) {
	initInstruments()
	status := statusStr(err)
	inst.pushTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("formula", formula),
			attribute.String("status", status),
		),
	)
	emit(ctx, "formula.push", severity(err),
		otellog.String("formula", formula),
		otellog.String("version", version),
		otellog.String("status", status),
		errKV(err),
	)
}

// RecordVersionConflict records a resolution conflict (metrics + log event).
func RecordVersionConflict(ctx context.Context, formula string, ranges []string) {
	initInstruments()
	inst.conflictTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("formula", formula)),
	)
	emit(ctx, "resolve.conflict", otellog.SeverityWarn,
		otellog.String("formula", formula),
		otellog.String("ranges", strings.Join(ranges, ", ")),
	)
}

// RecordResolveDuration records one resolution pass latency.
func RecordResolveDuration(ctx context.Context, formula string, ms float64, err error) {
	initInstruments()
	inst.resolveDurationHist.Record(ctx, ms,
		metric.WithAttributes(
			attribute.String("formula", formula),
			attribute.String("status", statusStr(err)),
		),
	)
}
