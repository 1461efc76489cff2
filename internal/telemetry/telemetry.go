// Package telemetry wires OTel metrics and logs for alembic.
//
// Telemetry is opt-in: Init is a no-op unless ALEMBIC_OTEL_METRICS_URL
// is set, in which case metrics (and, with ALEMBIC_OTEL_LOGS_URL, log
// events) are pushed over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Environment variables controlling telemetry.
const (
	EnvMetricsURL = "ALEMBIC_OTEL_METRICS_URL"
	EnvLogsURL    = "ALEMBIC_OTEL_LOGS_URL"
)

const serviceName = "alembic"

// Shutdown flushes and stops the configured providers.
type Shutdown func(ctx context.Context) error

// Init configures the global OTel meter and logger providers from the
// environment. When telemetry is disabled it returns a no-op shutdown
// and leaves the no-op globals in place.
func Init(ctx context.Context, buildVersion string) (Shutdown, error) {
	metricsURL := os.Getenv(EnvMetricsURL)
	if metricsURL == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(buildVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("building telemetry resource: %w", err)
	}

	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(metricsURL))
	if err != nil {
		return nil, fmt.Errorf("creating metrics exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(meterProvider)

	var loggerProvider *sdklog.LoggerProvider
	if logsURL := os.Getenv(EnvLogsURL); logsURL != "" {
		logExp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(logsURL))
		if err != nil {
			shutdownErr := meterProvider.Shutdown(ctx)
			if shutdownErr != nil {
				return nil, fmt.Errorf("creating logs exporter: %w (meter shutdown: %v)", err, shutdownErr)
			}
			return nil, fmt.Errorf("creating logs exporter: %w", err)
		}
		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		)
		global.SetLoggerProvider(loggerProvider)
	}

	return func(ctx context.Context) error {
		var firstErr error
		if loggerProvider != nil {
			if err := loggerProvider.Shutdown(ctx); err != nil {
				firstErr = err
			}
		}
		if err := meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}, nil
}
