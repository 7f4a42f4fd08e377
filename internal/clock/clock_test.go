package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsOfOverridesClock(t *testing.T) {
	fixed := Fixed{At: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	require.Equal(t, fixed.At, fixed.Now(context.Background()))

	pinned := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ctx := WithAsOf(context.Background(), pinned)
	require.Equal(t, pinned, fixed.Now(ctx))
	require.Equal(t, pinned, SystemClock{}.Now(ctx))
}

func TestDaysIn(t *testing.T) {
	require.Equal(t, 28, DaysIn(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 29, DaysIn(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 31, DaysIn(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), StartOfDay(time.Date(2025, 1, 2, 17, 4, 5, 0, time.UTC)))
}
