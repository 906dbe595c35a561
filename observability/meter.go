package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/sdkcore/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the client application.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the client application.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns the package meter from mp, or from the global provider when
// mp is nil.
func Meter(mp metric.MeterProvider) metric.Meter {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return mp.Meter(instrumentationName)
}

// Metric names.
const (
	MetricAttempts          = "sdk.attempts"
	MetricOperationDuration = "sdk.operation.duration"
	MetricErrors            = "sdk.errors"
)

// Metrics holds the operation instruments.
type Metrics struct {
	attempts          metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorTotal        metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	attempts, err := meter.Int64Counter(MetricAttempts,
		metric.WithDescription("Number of attempts made per operation, retries included"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricAttempts, err)
	}

	operationDuration, err := meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("Duration of operations in seconds, from first to last orchestration step"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricOperationDuration, err)
	}

	errorTotal, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Number of failed operations by error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrors, err)
	}

	return &Metrics{
		attempts:          attempts,
		operationDuration: operationDuration,
		errorTotal:        errorTotal,
	}, nil
}

// RecordOperation records a finished operation.
func (m *Metrics) RecordOperation(ctx context.Context, service, operation, status string, attempts int, duration time.Duration) {
	op := metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrOperation, operation),
	)
	m.attempts.Add(ctx, int64(attempts), op)
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrOperation, operation),
		attribute.String(AttrStatus, status),
	))
}

// RecordError records a failed operation by error kind.
func (m *Metrics) RecordError(ctx context.Context, service, operation, kind string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String(AttrOperation, operation),
		attribute.String(AttrErrorKind, kind),
	))
}
