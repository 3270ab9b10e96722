package core

import "context"

// Context keys for pipeline options
type contextKey string

const (
	runIDKey          contextKey = "runID"
	suppressOutputKey contextKey = "suppressOutput"
)

// withRunID attaches the tracked run ID to the context
func withRunID(ctx context.Context, runID int64) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// runIDFromContext returns the tracked run ID, or 0 when the call is not tracked
func runIDFromContext(ctx context.Context) int64 {
	val := ctx.Value(runIDKey)
	if val == nil {
		return 0
	}
	id, ok := val.(int64)
	if !ok {
		return 0
	}
	return id
}

// WithSuppressOutput marks a call whose results are returned to the caller
// instead of being printed
func WithSuppressOutput(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressOutputKey, true)
}

// shouldSuppressOutput returns whether printing is suppressed in the context
func shouldSuppressOutput(ctx context.Context) bool {
	val := ctx.Value(suppressOutputKey)
	if val == nil {
		return false // default: print results
	}
	suppress, ok := val.(bool)
	return ok && suppress
}
