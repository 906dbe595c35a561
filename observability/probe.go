package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/orchestrator"
)

// Operation status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OtelProbe reports each invocation as one span timed by its trace events.
type OtelProbe struct {
	tracer  trace.Tracer
	metrics *Metrics
}

// NewOtelProbe creates a probe on tp and mp. Either may be nil to use the
// global provider.
func NewOtelProbe(tp trace.TracerProvider, mp metric.MeterProvider) (*OtelProbe, error) {
	metrics, err := NewMetrics(Meter(mp))
	if err != nil {
		return nil, err
	}
	return &OtelProbe{tracer: Tracer(tp), metrics: metrics}, nil
}

// DispatchEvents implements orchestrator.TraceProbe.
func (p *OtelProbe) DispatchEvents(ctx context.Context, events []orchestrator.TraceEvent, bag *configbag.Bag) error {
	if len(events) == 0 {
		return nil
	}
	meta := configbag.LoadOr(bag, orchestrator.Metadata{})
	first, last := events[0], events[len(events)-1]

	name := meta.String()
	if name == "" {
		name = "operation"
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrSystem, "sdkcore"),
		attribute.String(AttrService, meta.Service),
		attribute.String(AttrOperation, meta.Operation),
	}
	if id, ok := configbag.Load[orchestrator.InvocationID](bag); ok {
		attrs = append(attrs, attribute.String(AttrInvocationID, string(id)))
	}

	_, span := p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(first.At),
		trace.WithAttributes(attrs...),
	)

	attempts := 0
	for _, ev := range events {
		attempts = max(attempts, ev.Attempt)
		evAttrs := []attribute.KeyValue{
			attribute.Int(AttrAttempt, ev.Attempt),
		}
		if ev.Err != nil {
			evAttrs = append(evAttrs,
				attribute.String(AttrErrorKind, string(errors.KindOf(ev.Err))),
				attribute.String("error.message", ev.Err.Error()),
			)
		}
		span.AddEvent(string(ev.Phase), trace.WithTimestamp(ev.At), trace.WithAttributes(evAttrs...))
	}
	span.SetAttributes(attribute.Int(AttrAttempts, attempts))

	status := StatusOK
	if err := last.Err; err != nil {
		status = StatusError
		span.RecordError(err, trace.WithTimestamp(last.At))
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordError(ctx, meta.Service, meta.Operation, string(errors.KindOf(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(last.At))

	p.metrics.RecordOperation(ctx, meta.Service, meta.Operation, status, attempts, orchestrator.Elapsed(events))
	return nil
}
