package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/marketflow/internal/domain"
)

const tracerName = "github.com/neomorfeo/marketflow/internal/adapter/otel"

// TracingRepository wraps a domain.TransactionRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.TransactionRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.TransactionRepository.
var _ domain.TransactionRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.TransactionRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, tx domain.Transaction) error {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.Create",
		trace.WithAttributes(
			attribute.String("transaction.id", tx.ID),
			attribute.String("transaction.process", tx.ProcessName),
			attribute.String("transaction.state", string(tx.State)),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.GetByID",
		trace.WithAttributes(attribute.String("transaction.id", id)),
	)
	defer span.End()

	tx, err := r.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return tx, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.ProcessName != "" {
		span.SetAttributes(attribute.String("filter.process", filter.ProcessName))
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		span.SetAttributes(attribute.StringSlice("filter.states", states))
	}

	transactions, err := r.next.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(transactions)))
	}
	return transactions, err
}

func (r *TracingRepository) Update(ctx context.Context, tx domain.Transaction) error {
	ctx, span := r.tracer.Start(ctx, "TransactionRepository.Update",
		trace.WithAttributes(
			attribute.String("transaction.id", tx.ID),
			attribute.String("transaction.state", string(tx.State)),
			attribute.String("transaction.last_transition", string(tx.LastTransition)),
			attribute.Int("transaction.seq", len(tx.Transitions)-1),
		),
	)
	defer span.End()

	err := r.next.Update(ctx, tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
