package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()
	m.Observe("run_billing_cycle", "created", 3)
	m.Observe("run_billing_cycle", "created", 0)
	m.Observe("run_billing_cycle", "skipped", 1)

	require.Equal(t, float64(3), testutil.ToFloat64(m.CycleResults.WithLabelValues("run_billing_cycle", "created")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CycleResults.WithLabelValues("run_billing_cycle", "skipped")))

	var nilMetrics *Metrics
	nilMetrics.Observe("x", "y", 1)
}

func TestNewLoggerFallsBackOnBadLevel(t *testing.T) {
	log, err := NewLogger(config.Config{AppName: "ispbilling", LogLevel: "loud"})
	require.NoError(t, err)
	require.NotNil(t, log)
}
