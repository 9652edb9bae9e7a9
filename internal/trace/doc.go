// Package trace records what the generator is doing.
//
// It is the only logging piecemeal does. The driver opens a span per
// pipeline phase (load, resolve, generate) and, at detail level, per package
// and per declaration; disk cache hits are point events. Engine packages
// never trace.
//
//	piecemeal gen --trace=- --trace-level=detail ./...
//
// The tracer and the innermost span travel in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePhase, "resolve")
//	defer span.End("")
//
// A StreamTracer writes events as they happen, a RingTracer keeps the last
// events for a dump when the run fails, and ModeBoth combines the two.
package trace
