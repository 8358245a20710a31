// Package observability wires OpenTelemetry tracing and metrics.
//
// When OTEL_ENABLED is false the global providers stay no-op, so spans and
// instruments can be used unconditionally:
//
//	ctx, span := observability.StartSpan(ctx, "db.session")
//	defer span.End()
//
//	metrics.RecordSession(ctx, observability.OutcomeCommit, time.Since(start))
package observability
