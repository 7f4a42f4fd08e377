package clock

import (
	"context"
	"time"
)

type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now(ctx context.Context) time.Time {
	if t, ok := AsOfFromContext(ctx); ok {
		return t
	}
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now().UTC()
}
