package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/marketflow/internal/domain"
)

// TracingValidator wraps a domain.TransitionValidator with OpenTelemetry tracing.
type TracingValidator struct {
	next   domain.TransitionValidator
	tracer trace.Tracer
}

// Compile-time check: TracingValidator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*TracingValidator)(nil)

// NewTracingValidator creates a tracing decorator around the given validator.
func NewTracingValidator(next domain.TransitionValidator) *TracingValidator {
	return &TracingValidator{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (v *TracingValidator) Apply(ctx context.Context, process domain.Process, current domain.State, transition domain.Transition) (domain.State, error) {
	ctx, span := v.tracer.Start(ctx, "TransitionValidator.Apply",
		trace.WithAttributes(
			attribute.String("transaction.process", process.Name),
			attribute.String("transition.from", string(current)),
			attribute.String("transition.name", string(transition)),
		),
	)
	defer span.End()

	dst, err := v.next.Apply(ctx, process, current, transition)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("transition.to", string(dst)))
	}
	return dst, err
}

// Available is a pure lookup and is not traced.
func (v *TracingValidator) Available(process domain.Process, current domain.State) []domain.Transition {
	return v.next.Available(process, current)
}
