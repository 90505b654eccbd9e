package events

import "context"

type traceCtxKey struct{}

// WithTrace attaches the request's trace context so the publish call can be
// stitched into the originating trace by downstream tooling.
func WithTrace(ctx context.Context, trace TraceContext) context.Context {
	return context.WithValue(ctx, traceCtxKey{}, trace)
}

// TraceFromContext extracts the trace context attached by the HTTP layer.
// Returns the zero value when none is present.
func TraceFromContext(ctx context.Context) TraceContext {
	trace, _ := ctx.Value(traceCtxKey{}).(TraceContext)
	return trace
}
