package orchestrator

import (
	"context"
	"time"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/logger"
)

// TraceEvent records one orchestration step.
type TraceEvent struct {
	Phase   Phase
	Attempt int
	At      time.Time
	Err     error
}

// TraceProbe receives the trace events of an invocation. It is called once
// per invocation, on success and on failure.
type TraceProbe interface {
	DispatchEvents(ctx context.Context, events []TraceEvent, bag *configbag.Bag) error
}

// TraceProbeFunc adapts a function to a TraceProbe.
type TraceProbeFunc func(ctx context.Context, events []TraceEvent, bag *configbag.Bag) error

// DispatchEvents implements TraceProbe.
func (f TraceProbeFunc) DispatchEvents(ctx context.Context, events []TraceEvent, bag *configbag.Bag) error {
	return f(ctx, events, bag)
}

// NoopProbe discards events.
type NoopProbe struct{}

// DispatchEvents implements TraceProbe.
func (NoopProbe) DispatchEvents(context.Context, []TraceEvent, *configbag.Bag) error { return nil }

// LoggingProbe writes events to a logger at debug level.
type LoggingProbe struct {
	Log *logger.Logger
}

// NewLoggingProbe creates a probe logging through the "trace" component logger.
func NewLoggingProbe() *LoggingProbe {
	return &LoggingProbe{Log: logger.Get("trace")}
}

// DispatchEvents implements TraceProbe.
func (p *LoggingProbe) DispatchEvents(ctx context.Context, events []TraceEvent, bag *configbag.Bag) error {
	log := p.Log.WithContext(ctx)
	if id, ok := configbag.Load[InvocationID](bag); ok {
		log = log.WithFields(logger.Fields(logger.FieldInvocationID, string(id)))
	}
	if m, ok := configbag.Load[Metadata](bag); ok {
		log = log.WithFields(logger.Fields(
			logger.FieldService, m.Service,
			logger.FieldOperation, m.Operation,
		))
	}
	for _, ev := range events {
		fields := logger.Fields(
			logger.FieldPhase, string(ev.Phase),
			logger.FieldAttempt, ev.Attempt,
		)
		if ev.Err != nil {
			fields[logger.FieldError] = ev.Err.Error()
			fields[logger.FieldErrorKind] = string(errors.KindOf(ev.Err))
		}
		log.Debug("orchestrator event", fields)
	}
	return nil
}

// Events returns the trace events recorded in bag so far.
func Events(bag *configbag.Bag) []TraceEvent {
	return configbag.LoadAll[TraceEvent](bag)
}
