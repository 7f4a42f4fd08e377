package scheduler

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type JobName string

const (
	JobBillingCycle     JobName = "billing_cycle"
	JobSuspensionCheck  JobName = "suspension_check"
	JobOverdueSweep     JobName = "overdue_sweep"
	JobRouterHealth     JobName = "router_health"
	JobSyncLogRetention JobName = "sync_log_retention"
)

var (
	ErrUnknownJob = errors.New("unknown_job")
	ErrLeaseHeld  = errors.New("job_lease_held")
)

// JobRun is one execution of a job on this instance.
type JobRun struct {
	ID        ulid.ULID
	Job       JobName
	AsOf      time.Time
	StartedAt time.Time
	Processed int
	Errors    int
	// Result holds the entry point summary, if any.
	Result any
}

func (r *JobRun) AddProcessed(n int) {
	r.Processed += n
}

func (r *JobRun) AddErrors(n int) {
	r.Errors += n
}

func (r *JobRun) fields() []zap.Field {
	return []zap.Field{
		zap.String("job", string(r.Job)),
		zap.String("run_id", r.ID.String()),
		zap.Time("as_of", r.AsOf),
	}
}

// ensureJobRun creates the run and takes the job lease. owner is false when
// another instance holds the lease or the lease store is unreachable.
func (s *Scheduler) ensureJobRun(ctx context.Context, job JobName, asOf time.Time) (context.Context, *JobRun, bool) {
	now := time.Now()
	run := &JobRun{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader),
		Job:       job,
		AsOf:      asOf,
		StartedAt: now,
	}
	ok, err := s.lease.Acquire(ctx, leaseKey(job), run.ID.String(), s.cfg.LeaseTTL)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.lease.acquire_failed", err)
		return ctx, run, false
	}
	if !ok {
		s.log.Debug("job lease held elsewhere", run.fields()...)
	}
	return ctx, run, ok
}

func (s *Scheduler) releaseJobRun(ctx context.Context, run *JobRun) {
	released, err := s.lease.Release(context.WithoutCancel(ctx), leaseKey(run.Job), run.ID.String())
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.lease.release_failed", err)
		return
	}
	if !released {
		s.log.Warn("job lease expired before release", run.fields()...)
	}
}

func (s *Scheduler) logJobStart(_ context.Context, run *JobRun) {
	s.log.Info("scheduler job started", run.fields()...)
}

func (s *Scheduler) logJobFinish(_ context.Context, run *JobRun, err error) {
	took := time.Since(run.StartedAt)
	result := "success"
	if err != nil {
		result = "failed"
	}
	s.metrics.ObserveJob(string(run.Job), result, took)
	s.log.Info("scheduler job finished", append(run.fields(),
		zap.String("result", result),
		zap.Int("processed", run.Processed),
		zap.Int("errors", run.Errors),
		zap.Duration("took", took),
	)...)
}

func (s *Scheduler) logSchedulerError(_ context.Context, run *JobRun, event string, err error) {
	s.log.Error(event, append(run.fields(), zap.Error(err))...)
}
