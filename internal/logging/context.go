package logging

import (
	"context"
	"log/slog"
)

type ctxKeyCallID struct{}

// WithCallID puts a call id into ctx.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCallID{}, id)
}

// CallIDFrom returns the call id stored in ctx, or "".
func CallIDFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyCallID{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FromContext tags l with the call id in ctx, if there is one.
func FromContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if id := CallIDFrom(ctx); id != "" {
		return l.With(slog.String("call_id", id))
	}
	return l
}
