package logging

import "context"

type contextKey struct{}

var loggerKey contextKey

// IntoContext stores l on ctx for retrieval by FromContext.
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext retrieves the logger stashed by IntoContext, falling back to a
// Nop logger so call sites never need a nil check.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Nop()
}
