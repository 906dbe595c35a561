// Package observability exports operation telemetry through OpenTelemetry.
//
// OtelProbe is an orchestrator trace probe: it turns the trace events of
// each invocation into one client span, with an event per orchestration
// step, and records attempt and latency metrics.
//
// Tracing and metrics bootstrap:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-client"))
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-client"))
//	defer mp.Shutdown(ctx)
//
//	probe, err := observability.NewOtelProbe(tp, mp)
//	orchestrator.SetTraceProbe(layer, probe)
package observability
