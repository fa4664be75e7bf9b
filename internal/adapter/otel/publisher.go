package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/marketflow/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing
// and counts published transitions.
type TracingPublisher struct {
	next        domain.EventPublisher
	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
func NewTracingPublisher(next domain.EventPublisher) *TracingPublisher {
	// Instrument creation only fails on an invalid name.
	counter, err := otel.Meter(tracerName).Int64Counter("marketflow.transitions",
		metric.WithDescription("Transitions recorded and published."),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return &TracingPublisher{
		next:        next,
		tracer:      otel.Tracer(tracerName),
		transitions: counter,
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, tx domain.Transaction, record domain.TransitionRecord) error {
	attrs := []attribute.KeyValue{
		attribute.String("transaction.process", tx.ProcessName),
		attribute.String("transition.name", string(record.Transition)),
		attribute.String("transition.by", string(record.By)),
	}

	ctx, span := p.tracer.Start(ctx, "EventPublisher.Publish",
		trace.WithAttributes(append(attrs, attribute.String("transaction.id", tx.ID))...),
	)
	defer span.End()

	err := p.next.Publish(ctx, tx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if p.transitions != nil {
		p.transitions.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Bool("error", err != nil))...))
	}
	return err
}
