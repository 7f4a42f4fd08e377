package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the counters shared by the gateway, the batch engine and the scheduler.
type Metrics struct {
	Registry *prometheus.Registry

	RouterCalls  *prometheus.CounterVec
	CycleResults *prometheus.CounterVec
	JobRuns      *prometheus.CounterVec
	JobDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RouterCalls,
		m.CycleResults,
		m.JobRuns,
		m.JobDuration,
	)
	m.Registry = reg
	return m
}

// NewNopMetrics returns unregistered collectors for tests.
func NewNopMetrics() *Metrics {
	m := newMetrics()
	m.Registry = prometheus.NewRegistry()
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		RouterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ispbilling",
			Name:      "router_calls_total",
			Help:      "Router API operations by action and outcome.",
		}, []string{"action", "status"}),
		CycleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ispbilling",
			Name:      "billing_cycle_results_total",
			Help:      "Per-item outcomes of billing batch entry points.",
		}, []string{"entrypoint", "outcome"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ispbilling",
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduler job executions by job and result.",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ispbilling",
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduler job wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
	}
}

// Observe adds n to the outcome counter of a batch entry point.
func (m *Metrics) Observe(entrypoint, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CycleResults.WithLabelValues(entrypoint, outcome).Add(float64(n))
}

// ObserveJob records one scheduler job execution.
func (m *Metrics) ObserveJob(job, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
	if result != "skipped" {
		m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
	}
}
