// Package trace provides structured event tracing for struct-name tables and
// the sessions that own them.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	structnames list --trace=- --trace-level=table
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: zero-overhead no-op tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer kept in memory for dumps
//   - MultiTracer: combines multiple tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only defect reports
//   - LevelSession: session boundaries (load, flush of a whole session)
//   - LevelTable: table-wide operations (flush, clone, bulk load)
//   - LevelEntry: everything including every newly interned identifier
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeTable, "load", parentID)
//	defer span.End("")
package trace
