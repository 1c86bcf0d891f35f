package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewMeterProvider configures and registers the global meter provider.
func NewMeterProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.OtelEnabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newMetricExporter(cfg.OtelExporterProtocol, cfg.OtelExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down meter provider")
			return provider.Shutdown(ctx)
		},
	})

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.OtelExporterEndpoint),
		zap.String("protocol", cfg.OtelExporterProtocol),
	)

	return provider, nil
}

// Metrics exposes application-level instruments for the lifecycle service.
type Metrics struct {
	lifecycleCommands metric.Int64Counter
	creditApplied     metric.Int64Counter
	auditRecords      metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// NewMetrics builds the domain instruments on the registered meter provider.
func NewMetrics(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fixology"
	}
	meter := provider.Meter(name)

	lifecycleCommands, err := meter.Int64Counter("fixology_lifecycle_commands_total")
	if err != nil {
		return nil, err
	}
	creditApplied, err := meter.Int64Counter("fixology_credit_applied_total")
	if err != nil {
		return nil, err
	}
	auditRecords, err := meter.Int64Counter("fixology_audit_records_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("fixology_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lifecycleCommands: lifecycleCommands,
		creditApplied:     creditApplied,
		auditRecords:      auditRecords,
		rateLimitDenied:   rateLimitDenied,
	}, nil
}

// RecordLifecycleCommand increments lifecycle command counts by action and outcome.
func (m *Metrics) RecordLifecycleCommand(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.lifecycleCommands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordCreditApplied increments credit application counts.
func (m *Metrics) RecordCreditApplied(ctx context.Context, reasonCode string) {
	if m == nil {
		return
	}
	m.creditApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason_code", strings.TrimSpace(reasonCode)),
	))
}

// RecordAuditEntry increments audit record counts by action.
func (m *Metrics) RecordAuditEntry(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.auditRecords.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", strings.TrimSpace(action)),
	))
}

// RecordRateLimitDenied increments admin command throttle counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	))
}

func newMetricExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
