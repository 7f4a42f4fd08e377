package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}

// Fixed always reports the same instant. Useful for tests and one-shot CLI runs.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now(ctx context.Context) time.Time {
	if t, ok := AsOfFromContext(ctx); ok {
		return t
	}
	return f.At
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysIn returns the number of days in the month containing t.
func DaysIn(t time.Time) int {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
