package clock

import (
	"context"
	"time"
)

type key string

var asOfKey key = "as_of"

// WithAsOf pins "now" for everything downstream that reads the clock from ctx.
// Batch entry points use it so a whole run agrees on the same date.
func WithAsOf(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, asOfKey, t)
}

// AsOfFromContext returns the pinned time, if present.
func AsOfFromContext(ctx context.Context) (time.Time, bool) {
	if ctx == nil {
		return time.Time{}, false
	}
	t, ok := ctx.Value(asOfKey).(time.Time)
	return t, ok
}
