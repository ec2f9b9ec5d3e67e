package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskwright/taskwright/internal/backend"
	"github.com/taskwright/taskwright/internal/types"
)

const backendScopeName = "github.com/taskwright/taskwright/backend"

// InstrumentedBackend wraps a backend.Backend with OTel tracing and metrics.
// Every call gets a span and is counted in tw.backend.* metrics.
// Use WrapBackend to create one; it returns the original backend unchanged
// when telemetry is disabled.
type InstrumentedBackend struct {
	inner  backend.Backend
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapBackend returns b decorated with OTel instrumentation.
// When telemetry is disabled, b is returned as-is with zero overhead.
func WrapBackend(b backend.Backend) backend.Backend {
	if !Enabled() {
		return b
	}
	m := Meter(backendScopeName)
	ops, _ := m.Int64Counter("tw.backend.operations",
		metric.WithDescription("Total backend calls issued"),
	)
	dur, _ := m.Float64Histogram("tw.backend.operation.duration",
		metric.WithDescription("Backend call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("tw.backend.errors",
		metric.WithDescription("Total backend call errors"),
	)
	return &InstrumentedBackend{
		inner:  b,
		tracer: Tracer(backendScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named backend operation.
func (b *InstrumentedBackend) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("tw.operation", name)}, attrs...)
	ctx, span := b.tracer.Start(ctx, "backend."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	b.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (b *InstrumentedBackend) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	b.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (b *InstrumentedBackend) CreateItem(ctx context.Context, typ types.ItemType, fields map[string]any, parentRealID string) (string, error) {
	attrs := []attribute.KeyValue{
		attribute.String("tw.item.type", string(typ)),
		attribute.Bool("tw.item.has_parent", parentRealID != ""),
	}
	ctx, span, t := b.op(ctx, "CreateItem", attrs...)
	id, err := b.inner.CreateItem(ctx, typ, fields, parentRealID)
	b.done(ctx, span, t, err, attrs...)
	return id, err
}

func (b *InstrumentedBackend) UpdateItem(ctx context.Context, typ types.ItemType, id string, fields map[string]any) error {
	attrs := []attribute.KeyValue{
		attribute.String("tw.item.type", string(typ)),
		attribute.Int("tw.update.count", len(fields)),
	}
	ctx, span, t := b.op(ctx, "UpdateItem", attrs...)
	err := b.inner.UpdateItem(ctx, typ, id, fields)
	b.done(ctx, span, t, err, attrs...)
	return err
}

func (b *InstrumentedBackend) CompleteItem(ctx context.Context, typ types.ItemType, id string, completionDate string) error {
	attrs := []attribute.KeyValue{attribute.String("tw.item.type", string(typ))}
	ctx, span, t := b.op(ctx, "CompleteItem", attrs...)
	err := b.inner.CompleteItem(ctx, typ, id, completionDate)
	b.done(ctx, span, t, err, attrs...)
	return err
}

func (b *InstrumentedBackend) DeleteItem(ctx context.Context, typ types.ItemType, id string) error {
	attrs := []attribute.KeyValue{attribute.String("tw.item.type", string(typ))}
	ctx, span, t := b.op(ctx, "DeleteItem", attrs...)
	err := b.inner.DeleteItem(ctx, typ, id)
	b.done(ctx, span, t, err, attrs...)
	return err
}
