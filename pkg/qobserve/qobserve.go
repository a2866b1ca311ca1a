// Package qobserve wires OpenTelemetry tracing/metrics and slog
// structured logging around Qualifier's operations, disabled by
// default so embedding the core never requires an OTLP collector.
package qobserve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the Provider. Enabled defaults to false: the core
// is a library embedded by CLIs and agents that may never run a
// collector, so telemetry is opt-in.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
	BatchTimeout time.Duration
	Enabled      bool
	Insecure     bool
}

// DefaultConfig returns telemetry disabled, everything else at a
// sane default for the case a caller flips Enabled on.
func DefaultConfig() Config {
	return Config{
		ServiceName:  "qualifier",
		OTLPEndpoint: "localhost:4317",
		SampleRate:   1.0,
		BatchTimeout: 5 * time.Second,
		Enabled:      false,
		Insecure:     true,
	}
}

// Provider bundles the tracer, meter, and the counters Qualifier's
// operations record into them.
type Provider struct {
	config Config
	logger *slog.Logger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	recordsParsed     metric.Int64Counter
	recordsAppended   metric.Int64Counter
	scoresComputed    metric.Int64Counter
	compactionsRun    metric.Int64Counter
	errorCounter      metric.Int64Counter
	operationDuration metric.Float64Histogram
}

// New constructs a Provider. With Enabled false it returns a
// no-op-safe Provider (every Record* method checks for a nil
// instrument before using it) backed only by a slog logger.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{
		config: cfg,
		logger: slog.Default().With("component", "qobserve"),
	}

	if !cfg.Enabled {
		p.logger.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("qualifier.component", "core"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("qobserve: build resource: %w", err)
	}

	if err := p.initTracing(ctx, res); err != nil {
		return nil, fmt.Errorf("qobserve: init tracing: %w", err)
	}
	if err := p.initMetrics(ctx, res); err != nil {
		return nil, fmt.Errorf("qobserve: init metrics: %w", err)
	}

	p.tracer = otel.Tracer("qualifier.core")
	p.meter = otel.Meter("qualifier.core")

	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("qobserve: init instruments: %w", err)
	}

	p.logger.InfoContext(ctx, "observability initialized",
		"service", cfg.ServiceName, "endpoint", cfg.OTLPEndpoint, "sample_rate", cfg.SampleRate)
	return p, nil
}

func (p *Provider) initTracing(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return nil
}

func (p *Provider) initMetrics(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return err
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error
	if p.recordsParsed, err = p.meter.Int64Counter("qualifier.records.parsed",
		metric.WithDescription("Records successfully parsed from record files"), metric.WithUnit("{record}")); err != nil {
		return err
	}
	if p.recordsAppended, err = p.meter.Int64Counter("qualifier.records.appended",
		metric.WithDescription("Records appended to record files"), metric.WithUnit("{record}")); err != nil {
		return err
	}
	if p.scoresComputed, err = p.meter.Int64Counter("qualifier.scores.computed",
		metric.WithDescription("Subjects for which an effective score was computed"), metric.WithUnit("{subject}")); err != nil {
		return err
	}
	if p.compactionsRun, err = p.meter.Int64Counter("qualifier.compactions.run",
		metric.WithDescription("Compaction runs completed"), metric.WithUnit("{run}")); err != nil {
		return err
	}
	if p.errorCounter, err = p.meter.Int64Counter("qualifier.errors.total",
		metric.WithDescription("Errors recorded across all operations"), metric.WithUnit("{error}")); err != nil {
		return err
	}
	if p.operationDuration, err = p.meter.Float64Histogram("qualifier.operation.duration",
		metric.WithDescription("Duration of a tracked operation"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0)); err != nil {
		return err
	}
	return nil
}

// Shutdown flushes and stops the trace/metric providers. Safe to call
// on a disabled Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown trace provider failed", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "shutdown metric provider failed", "error", err)
		}
	}
	return nil
}

// Logger returns the structured logger every component should log
// through, so log lines carry the "component" attribute consistently.
func (p *Provider) Logger() *slog.Logger { return p.logger }

// RecordsParsed increments the parsed-records counter by n.
func (p *Provider) RecordsParsed(ctx context.Context, n int64, path string) {
	if p.recordsParsed != nil {
		p.recordsParsed.Add(ctx, n, metric.WithAttributes(attribute.String("qualifier.file", path)))
	}
}

// RecordAppended increments the appended-records counter for subject.
func (p *Provider) RecordAppended(ctx context.Context, subject string) {
	if p.recordsAppended != nil {
		p.recordsAppended.Add(ctx, 1, metric.WithAttributes(attribute.String("qualifier.subject", subject)))
	}
}

// ScoresComputed increments the computed-scores counter by n subjects.
func (p *Provider) ScoresComputed(ctx context.Context, n int64) {
	if p.scoresComputed != nil {
		p.scoresComputed.Add(ctx, n)
	}
}

// CompactionRun increments the compaction-run counter for the given
// mode ("prune" or "snapshot").
func (p *Provider) CompactionRun(ctx context.Context, mode string) {
	if p.compactionsRun != nil {
		p.compactionsRun.Add(ctx, 1, metric.WithAttributes(attribute.String("qualifier.mode", mode)))
	}
}

// TrackOperation starts a span and timer for name, returning a
// completion function that records the error (if any) and duration.
func (p *Provider) TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.Tracer().Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		duration := time.Since(start)
		if p.operationDuration != nil {
			p.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
		}
		if err != nil {
			span.RecordError(err)
			if p.errorCounter != nil {
				allAttrs := append(append([]attribute.KeyValue{}, attrs...), attribute.String("error.type", fmt.Sprintf("%T", err)))
				p.errorCounter.Add(ctx, 1, metric.WithAttributes(allAttrs...))
			}
		}
		span.End()
	}
}

// Tracer returns the configured tracer, or a no-op-backed default
// tracer if telemetry is disabled.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer("qualifier.core")
	}
	return p.tracer
}
