package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingcycledomain "github.com/railzwaylabs/ispbilling/internal/billingcycle/domain"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Clock   clock.Clock
	Lease   Lease
	Cycle   billingcycledomain.Service
	Routers routerdomain.Service
	Metrics *observability.Metrics `optional:"true"`
}

type jobFunc func(ctx context.Context, run *JobRun) error

type Scheduler struct {
	log     *zap.Logger
	cfg     config.SchedulerConfig
	clock   clock.Clock
	lease   Lease
	cycle   billingcycledomain.Service
	routers routerdomain.Service
	metrics *observability.Metrics

	cron *cron.Cron
	jobs map[JobName]jobFunc
}

func New(p Params) *Scheduler {
	log := p.Log.Named("scheduler")
	loc, err := time.LoadLocation(p.Config.Billing.Timezone)
	if err != nil {
		log.Warn("invalid billing timezone, scheduling in UTC", zap.String("timezone", p.Config.Billing.Timezone))
		loc = time.UTC
	}

	s := &Scheduler{
		log:     log,
		cfg:     p.Config.Scheduler,
		clock:   p.Clock,
		lease:   p.Lease,
		cycle:   p.Cycle,
		routers: p.Routers,
		metrics: p.Metrics,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger{log: log})),
		),
	}
	s.jobs = map[JobName]jobFunc{
		JobBillingCycle:     s.billingCycleJob,
		JobSuspensionCheck:  s.suspensionCheckJob,
		JobOverdueSweep:     s.overdueSweepJob,
		JobRouterHealth:     s.routerHealthJob,
		JobSyncLogRetention: s.syncLogRetentionJob,
	}
	return s
}

func (s *Scheduler) specs() map[JobName]string {
	return map[JobName]string{
		JobBillingCycle:     s.cfg.BillingCycleSpec,
		JobSuspensionCheck:  s.cfg.SuspensionCheckSpec,
		JobOverdueSweep:     s.cfg.OverdueSweepSpec,
		JobRouterHealth:     s.cfg.RouterHealthSpec,
		JobSyncLogRetention: s.cfg.SyncLogRetentionSpec,
	}
}

// Start registers every job with a non-empty spec and starts the cron loop.
func (s *Scheduler) Start() error {
	for job, spec := range s.specs() {
		if spec == "" {
			s.log.Info("job disabled", zap.String("job", string(job)))
			continue
		}
		if _, err := s.cron.AddFunc(spec, func() { s.tick(job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job, spec, err)
		}
		s.log.Info("job scheduled", zap.String("job", string(job)), zap.String("spec", spec))
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop. The returned context is done once running jobs return.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) tick(job JobName) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LeaseTTL)
	defer cancel()

	_, err := s.run(ctx, job, s.clock.Now(ctx))
	if err != nil && !errors.Is(err, ErrLeaseHeld) {
		s.log.Warn("scheduled job failed", zap.String("job", string(job)), zap.Error(err))
	}
}

// RunOnce executes a job immediately under the same lease as the cron path.
func (s *Scheduler) RunOnce(ctx context.Context, job JobName, asOf time.Time) (*JobRun, error) {
	return s.run(ctx, job, asOf)
}

func (s *Scheduler) run(ctx context.Context, job JobName, asOf time.Time) (*JobRun, error) {
	fn, ok := s.jobs[job]
	if !ok {
		return nil, ErrUnknownJob
	}

	ctx, run, owner := s.ensureJobRun(ctx, job, asOf)
	if !owner {
		s.metrics.ObserveJob(string(job), "skipped", 0)
		return run, ErrLeaseHeld
	}
	defer s.releaseJobRun(ctx, run)

	s.logJobStart(ctx, run)
	err := fn(clock.WithAsOf(ctx, asOf), run)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.job.failed", err)
	}
	s.logJobFinish(ctx, run, err)
	return run, err
}

func (s *Scheduler) billingCycleJob(ctx context.Context, run *JobRun) error {
	summary, err := s.cycle.RunBillingCycle(ctx, run.AsOf)
	if err != nil {
		return err
	}
	run.Result = summary
	run.AddProcessed(summary.Candidates)
	run.AddErrors(summary.Errors)
	return nil
}

func (s *Scheduler) suspensionCheckJob(ctx context.Context, run *JobRun) error {
	summary, err := s.cycle.EvaluateSubscriptionSuspensions(ctx, run.AsOf)
	if err != nil {
		return err
	}
	run.Result = summary
	run.AddProcessed(summary.Checked)
	run.AddErrors(summary.Errors)
	return nil
}

func (s *Scheduler) overdueSweepJob(ctx context.Context, run *JobRun) error {
	summary, err := s.cycle.SweepOverdue(ctx, run.AsOf)
	if err != nil {
		return err
	}
	run.Result = summary
	run.AddProcessed(int(summary.Marked))
	return nil
}

func (s *Scheduler) routerHealthJob(ctx context.Context, run *JobRun) error {
	summary, err := s.cycle.CheckRouters(ctx)
	if err != nil {
		return err
	}
	run.Result = summary
	run.AddProcessed(summary.Checked)
	return nil
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
