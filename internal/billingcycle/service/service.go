package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	"github.com/railzwaylabs/ispbilling/internal/billingcycle/domain"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	entryBillingCycle = "billing_cycle"
	entrySuspensions  = "suspension_check"
	entryOverdue      = "overdue_sweep"
	entryRouterHealth = "router_health"
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Subscriptions subscriptiondomain.Service
	Bills         billingdomain.Service
	Routers       routerdomain.Service
	Gateway       mikrotik.Gateway
	Metrics       *observability.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	subscriptions subscriptiondomain.Service
	bills         billingdomain.Service
	routers       routerdomain.Service
	gateway       mikrotik.Gateway
	metrics       *observability.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("billingcycle.service"),
		subscriptions: p.Subscriptions,
		bills:         p.Bills,
		routers:       p.Routers,
		gateway:       p.Gateway,
		metrics:       p.Metrics,
	}
}

func (s *Service) RunBillingCycle(ctx context.Context, asOf time.Time) (*domain.CycleSummary, error) {
	ctx = clock.WithAsOf(ctx, asOf)
	summary := &domain.CycleSummary{AsOf: asOf}

	candidates, err := s.subscriptions.ListBillable(ctx, asOf)
	if err != nil {
		return summary, fmt.Errorf("list billable subscriptions: %w", err)
	}
	summary.Candidates = len(candidates)

	for _, sub := range candidates {
		var out *billingdomain.GenerateOutcome
		err := isolate(func() error {
			var err error
			out, err = s.bills.GenerateBill(ctx, sub.ID, asOf)
			return err
		})
		switch {
		case errors.Is(err, billingdomain.ErrSubscriptionInactive):
			summary.Skipped++
		case err != nil:
			summary.Errors++
			summary.Failures = append(summary.Failures, domain.ItemFailure{ID: sub.ID, Error: err.Error()})
			s.log.Error("bill generation failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Time("as_of", asOf),
				zap.Error(err),
			)
		case out.Created:
			summary.Created++
			if out.AutoPaid {
				summary.AutoPaid++
			}
		default:
			summary.Skipped++
		}
	}

	s.metrics.Observe(entryBillingCycle, "created", summary.Created)
	s.metrics.Observe(entryBillingCycle, "auto_paid", summary.AutoPaid)
	s.metrics.Observe(entryBillingCycle, "skipped", summary.Skipped)
	s.metrics.Observe(entryBillingCycle, "error", summary.Errors)
	s.log.Info("billing cycle finished",
		zap.Time("as_of", asOf),
		zap.Int("candidates", summary.Candidates),
		zap.Int("created", summary.Created),
		zap.Int("auto_paid", summary.AutoPaid),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (s *Service) EvaluateSubscriptionSuspensions(ctx context.Context, asOf time.Time) (*domain.SuspensionSummary, error) {
	ctx = clock.WithAsOf(ctx, asOf)
	summary := &domain.SuspensionSummary{AsOf: asOf}

	subs, err := s.subscriptions.ListPastBillingDay(ctx, asOf)
	if err != nil {
		return summary, fmt.Errorf("list subscriptions past billing day: %w", err)
	}
	summary.Checked = len(subs)

	for _, sub := range subs {
		var outcome suspensionOutcome
		err := isolate(func() error {
			var err error
			outcome, err = s.evaluate(ctx, sub, asOf)
			return err
		})
		if err != nil {
			summary.Errors++
			summary.Failures = append(summary.Failures, domain.ItemFailure{ID: sub.ID, Error: err.Error()})
			s.log.Error("suspension check failed",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case outcomeSuspended:
			summary.Suspended++
		case outcomeRouterFailed:
			summary.Suspended++
			summary.RouterFailed++
		case outcomeMissingBill:
			summary.IntegrityWarnings++
		default:
			summary.Skipped++
		}
	}

	s.metrics.Observe(entrySuspensions, "suspended", summary.Suspended)
	s.metrics.Observe(entrySuspensions, "router_failed", summary.RouterFailed)
	s.metrics.Observe(entrySuspensions, "integrity_warning", summary.IntegrityWarnings)
	s.metrics.Observe(entrySuspensions, "skipped", summary.Skipped)
	s.metrics.Observe(entrySuspensions, "error", summary.Errors)
	s.log.Info("suspension check finished",
		zap.Time("as_of", asOf),
		zap.Int("checked", summary.Checked),
		zap.Int("suspended", summary.Suspended),
		zap.Int("router_failed", summary.RouterFailed),
		zap.Int("integrity_warnings", summary.IntegrityWarnings),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

type suspensionOutcome int

const (
	outcomeSkipped suspensionOutcome = iota
	outcomeSuspended
	outcomeRouterFailed
	outcomeMissingBill
)

func (s *Service) evaluate(ctx context.Context, sub *subscriptiondomain.Subscription, asOf time.Time) (suspensionOutcome, error) {
	bill, err := s.bills.FindBillForPeriod(ctx, sub.ID, asOf.Year(), int(asOf.Month()))
	if err != nil {
		return outcomeSkipped, err
	}
	if bill == nil {
		// No bill to enforce. Generation should have produced one; leave it to an operator.
		s.log.Warn("no bill for current period past billing day",
			zap.Bool("integrity", true),
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("billing_day", sub.BillingDay),
			zap.Time("as_of", asOf),
		)
		return outcomeMissingBill, nil
	}
	if !bill.Status.Unsettled() {
		return outcomeSkipped, nil
	}

	res, err := s.subscriptions.SuspendForNonPayment(ctx, sub.ID,
		fmt.Sprintf("Auto-suspended: bill %s unpaid after billing day %d", bill.BillNumber, sub.BillingDay))
	if errors.Is(err, subscriptiondomain.ErrAlreadySuspended) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}
	// The suspension is committed; a bill left unmarked is repaired by the overdue sweep.
	if bill.Status != ledger.BillStatusOverdue {
		if _, err := s.bills.MarkOverdue(ctx, bill.ID); err != nil {
			s.log.Error("mark bill overdue failed after suspension",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("bill", bill.BillNumber),
				zap.Error(err),
			)
		}
	}
	if res.RouterFailed() {
		return outcomeRouterFailed, nil
	}
	return outcomeSuspended, nil
}

func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) (*billingdomain.SweepSummary, error) {
	ctx = clock.WithAsOf(ctx, asOf)
	summary, err := s.bills.SweepOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	s.metrics.Observe(entryOverdue, "marked", int(summary.Marked))
	return &summary, nil
}

func (s *Service) CheckRouters(ctx context.Context) (*domain.RouterHealthSummary, error) {
	routers, err := s.routers.List(ctx, true)
	if err != nil {
		return nil, err
	}
	summary := &domain.RouterHealthSummary{Checked: len(routers)}
	for _, router := range routers {
		res := s.gateway.TestConnection(ctx, router)
		if res.Success {
			summary.Online++
			continue
		}
		summary.Offline++
		summary.Down = append(summary.Down, domain.ItemFailure{ID: router.ID, Error: res.Message})
	}
	s.metrics.Observe(entryRouterHealth, "online", summary.Online)
	s.metrics.Observe(entryRouterHealth, "offline", summary.Offline)
	if summary.Offline > 0 {
		s.log.Warn("routers offline", zap.Int("offline", summary.Offline), zap.Int("checked", summary.Checked))
	}
	return summary, nil
}

// isolate turns a panic in one batch item into an error for that item.
func isolate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("item aborted: %v", r)
		}
	}()
	return fn()
}
