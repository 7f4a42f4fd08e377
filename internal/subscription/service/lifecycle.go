package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Suspend flips the local status first; the router is disabled afterwards on a
// best-effort basis and drift is left in sync_error.
func (s *Service) Suspend(ctx context.Context, req domain.SuspendRequest) (*domain.ActionResult, error) {
	notes := req.Reason
	if notes == "" {
		notes = "Suspended by staff"
	}
	sub, err := s.transition(ctx, req.ID, domain.StatusSuspended, domain.HistorySuspended, actorOr(req.Actor), notes, nil)
	if err != nil {
		return nil, err
	}
	result := s.applyRouter(ctx, sub, func(router *routerdomain.Router) mikrotik.Result {
		return s.gateway.DisablePPPoEUser(ctx, router, sub.MikrotikUsername)
	}, nil)

	s.log.Info("subscription suspended",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("actor", actorOr(req.Actor)),
		zap.Bool("router_failed", result.RouterFailed()),
	)
	return result, nil
}

func (s *Service) Activate(ctx context.Context, req domain.ActivateRequest) (*domain.ActionResult, error) {
	notes := req.Notes
	if notes == "" {
		notes = "Activated by staff"
	}
	sub, err := s.transition(ctx, req.ID, domain.StatusActive, domain.HistoryActivated, actorOr(req.Actor), notes, nil)
	if err != nil {
		return nil, err
	}
	result := s.applyRouter(ctx, sub, func(router *routerdomain.Router) mikrotik.Result {
		return s.gateway.EnablePPPoEUser(ctx, router, sub.MikrotikUsername)
	}, nil)

	s.log.Info("subscription activated",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("actor", actorOr(req.Actor)),
		zap.Bool("router_failed", result.RouterFailed()),
	)
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.ActionResult, error) {
	notes := req.Reason
	if notes == "" {
		notes = "Cancelled by staff"
	}
	sub, err := s.transition(ctx, req.ID, domain.StatusCancelled, domain.HistoryCancelled, actorOr(req.Actor), notes,
		func(sub *domain.Subscription, now time.Time) {
			end := clock.StartOfDay(now)
			sub.EndDate = &end
		})
	if err != nil {
		return nil, err
	}

	if req.Purge {
		return s.applyRouter(ctx, sub, func(router *routerdomain.Router) mikrotik.Result {
			return s.gateway.DeletePPPoEUser(ctx, router, sub.MikrotikUsername)
		}, func(state *domain.SyncState) {
			state.IsSynced = false
			state.MikrotikUserID = nil
		}), nil
	}
	return s.applyRouter(ctx, sub, func(router *routerdomain.Router) mikrotik.Result {
		return s.gateway.DisablePPPoEUser(ctx, router, sub.MikrotikUsername)
	}, nil), nil
}

// ChangePackage records the change only; pushing the new profile to the router
// is a separate SyncToRouter call.
func (s *Service) ChangePackage(ctx context.Context, req domain.ChangePackageRequest) (*domain.Subscription, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	pkg, err := s.packages.Get(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, productdomain.ErrInactive
	}

	var sub *domain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.lockOpen(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if sub.PackageID == pkg.ID {
			return nil
		}
		old := sub.PackageID
		sub.PackageID = pkg.ID
		sub.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		return s.repo.InsertHistory(ctx, tx, s.historyEntry(ctx, sub.ID, domain.HistoryPackageChanged,
			map[string]any{"package_id": old.String()},
			map[string]any{"package_id": pkg.ID.String()},
			actorOr(req.Actor), "Package changed"))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ChangeRouter moves the subscription and clears its sync flags. The secret on
// the old router is left alone; provisioning the new one is explicit.
func (s *Service) ChangeRouter(ctx context.Context, req domain.ChangeRouterRequest) (*domain.Subscription, error) {
	var target *snowflake.ID
	if req.RouterID != nil && *req.RouterID != 0 {
		router, err := s.routers.Get(ctx, *req.RouterID)
		if err != nil {
			return nil, err
		}
		if !router.IsActive {
			return nil, routerdomain.ErrInactive
		}
		target = &router.ID
	}

	var sub *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.lockOpen(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if sameRouter(sub.RouterID, target) {
			return nil
		}
		old := routerValue(sub.RouterID)
		sub.RouterID = target
		sub.IsSynced = false
		sub.MikrotikUserID = nil
		sub.SyncError = nil
		sub.UpdatedAt = s.clock.Now(ctx)
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		return s.repo.InsertHistory(ctx, tx, s.historyEntry(ctx, sub.ID, domain.HistoryRouterChanged,
			map[string]any{"router_id": old},
			map[string]any{"router_id": routerValue(target)},
			actorOr(req.Actor), "Router changed"))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SyncToRouter re-provisions the subscription on its router: queue and PPP
// profiles, then the secret, adopting one that already exists. A suspended
// subscription's secret is disabled afterwards so the router matches intent.
func (s *Service) SyncToRouter(ctx context.Context, id snowflake.ID) (*domain.ActionResult, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.HasRouter() {
		return nil, domain.ErrNoRouter
	}
	if !sub.Status.Open() {
		return nil, domain.ErrInvalidTransition
	}
	customer, err := s.customers.Get(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	pkg, err := s.packages.Get(ctx, sub.PackageID)
	if err != nil {
		return nil, err
	}
	router, err := s.routers.Get(ctx, *sub.RouterID)
	if err != nil {
		return nil, err
	}

	var logs syncLogs
	defer func() { s.recordSyncLogs(ctx, logs) }()

	result := &domain.ActionResult{Subscription: sub, RouterAttempted: true}
	if err := s.ensureQueueProfile(ctx, pkg, router, &logs); err != nil {
		var perr *domain.ProvisioningError
		if !errors.As(err, &perr) {
			return nil, err
		}
		result.RouterMessage = perr.Message
		s.saveSyncState(ctx, sub, false, perr.Message, nil)
		return result, nil
	}
	s.ensurePPPProfile(ctx, pkg, router, &logs)

	spec := secretSpec(sub, customer, pkg)
	var res mikrotik.Result
	if sub.MikrotikUserID != nil {
		res = s.gateway.UpdatePPPoEUser(ctx, router, sub.MikrotikUsername, mikrotik.SecretUpdate{
			Password:      &spec.Password,
			Profile:       &spec.Profile,
			Comment:       &spec.Comment,
			RemoteAddress: sub.StaticIP,
		})
		logs.add(res, router.ID, entityPPPoEUser, sub.MikrotikUsername)
	}
	if sub.MikrotikUserID == nil || (!res.Success && res.Message == mikrotik.MessageUserNotFound) {
		res = s.gateway.CreatePPPoEUser(ctx, router, spec, true)
		logs.add(res, router.ID, entityPPPoEUser, sub.MikrotikUsername)
	}

	if res.Success && sub.Status == domain.StatusSuspended {
		disabled := s.gateway.DisablePPPoEUser(ctx, router, sub.MikrotikUsername)
		logs.add(disabled, router.ID, entityPPPoEUser, sub.MikrotikUsername)
		if !disabled.Success {
			res = disabled
		}
	}

	result.RouterSuccess = res.Success
	result.RouterMessage = res.Message
	remoteID := res.RemoteID
	s.saveSyncState(ctx, sub, res.Success, res.Message, func(state *domain.SyncState) {
		state.IsSynced = true
		if remoteID != "" {
			state.MikrotikUserID = &remoteID
		}
	})

	s.log.Info("subscription synced to router",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("router", router.Name),
		zap.Bool("success", res.Success),
	)
	return result, nil
}

func (s *Service) ReactivateAfterPayment(ctx context.Context, id snowflake.ID) (bool, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if sub.Status != domain.StatusSuspended || !sub.HasRouter() {
		return false, nil
	}
	_, err = s.Activate(ctx, domain.ActivateRequest{
		ID:    id,
		Notes: "Reactivated after payment",
		Actor: domain.ActorSystemPayment,
	})
	if errors.Is(err, domain.ErrAlreadyActive) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) SuspendForNonPayment(ctx context.Context, id snowflake.ID, reason string) (*domain.ActionResult, error) {
	if reason == "" {
		reason = "Suspended for non-payment"
	}
	return s.Suspend(ctx, domain.SuspendRequest{ID: id, Reason: reason, Actor: domain.ActorSystemBilling})
}

// transition moves a subscription to target and appends the history row in
// the same transaction.
func (s *Service) transition(
	ctx context.Context,
	id snowflake.ID,
	target domain.Status,
	action domain.HistoryAction,
	actor, notes string,
	mutate func(sub *domain.Subscription, now time.Time),
) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrNotFound
		}
		if sub.Status == target {
			return alreadyIn(target)
		}
		if !isTransitionAllowed(sub.Status, target) {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now(ctx)
		old := sub.Status
		sub.Status = target
		sub.UpdatedAt = now
		if mutate != nil {
			mutate(sub, now)
		}
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		return s.repo.InsertHistory(ctx, tx, s.historyEntry(ctx, sub.ID, action,
			map[string]any{"status": old},
			map[string]any{"status": target},
			actor, notes))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) lockOpen(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	if !sub.Status.Open() {
		return nil, domain.ErrInvalidTransition
	}
	return sub, nil
}

func alreadyIn(status domain.Status) error {
	switch status {
	case domain.StatusSuspended:
		return domain.ErrAlreadySuspended
	case domain.StatusActive:
		return domain.ErrAlreadyActive
	default:
		return domain.ErrInvalidTransition
	}
}

// Expired is reserved and never a target.
func isTransitionAllowed(from, to domain.Status) bool {
	switch from {
	case domain.StatusActive:
		return to == domain.StatusSuspended || to == domain.StatusCancelled
	case domain.StatusSuspended:
		return to == domain.StatusActive || to == domain.StatusCancelled
	default:
		return false
	}
}

func sameRouter(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func routerValue(id *snowflake.ID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
