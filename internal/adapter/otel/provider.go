package otel

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attributes describing what this marketflow instance runs.
const (
	AttrProcessNames  = attribute.Key("marketflow.process.names")
	AttrProcessGraphs = attribute.Key("marketflow.process.graphs")
)

// Exporters accepted in Config.Exporter.
var Exporters = []string{"stdout", "otlp", "none"}

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string // "development" or "production"
	Exporter       string // one of Exporters
	Insecure       bool   // plain HTTP for OTLP

	// Registered processes, by name and by graph ID, recorded on the resource
	// so telemetry can be tied to the graph release that produced it.
	ProcessNames []string
	GraphIDs     []string
}

// Providers holds the initialized providers, the resource they report under,
// and their shutdown function.
type Providers struct {
	Resource *resource.Resource
	Shutdown func(ctx context.Context) error
}

// Setup initializes the TracerProvider and MeterProvider, registers them
// globally, and returns Providers whose Shutdown flushes pending telemetry.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if !slices.Contains(Exporters, cfg.Exporter) {
		return nil, fmt.Errorf("unsupported exporter: %q (use one of %q)", cfg.Exporter, Exporters)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("creating tracer provider: %w", err)
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("creating meter provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Providers{
		Resource: res,
		Shutdown: func(ctx context.Context) error {
			return errors.Join(
				wrap("tracer shutdown", tp.Shutdown(ctx)),
				wrap("meter shutdown", mp.Shutdown(ctx)),
			)
		},
	}, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	if len(cfg.ProcessNames) > 0 {
		attrs = append(attrs, AttrProcessNames.StringSlice(cfg.ProcessNames))
	}
	if len(cfg.GraphIDs) > 0 {
		attrs = append(attrs, AttrProcessGraphs.StringSlice(cfg.GraphIDs))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{trace.WithResource(res)}

	var exporter trace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		var o []otlptracehttp.Option
		if cfg.Insecure {
			o = append(o, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, o...)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	// With "none" spans are still created so trace context propagates.
	if exporter != nil {
		opts = append(opts, trace.WithBatcher(exporter))
	}
	return trace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(res)}

	var exporter metric.Exporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		var o []otlpmetrichttp.Option
		if cfg.Insecure {
			o = append(o, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, o...)
	case "stdout":
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, err
	}

	if exporter != nil {
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter)))
	}
	return metric.NewMeterProvider(opts...), nil
}
