package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"go.uber.org/zap"
)

const (
	entityQueue      = "queue"
	entityPPPProfile = "ppp_profile"
	entityPPPoEUser  = "pppoe_user"
)

// syncLogs buffers sync-log rows so they can be written outside any transaction
// and survive a rollback of the work they describe.
type syncLogs []*routerdomain.SyncLog

func (l *syncLogs) add(res mikrotik.Result, routerID snowflake.ID, entityType, entityID string) {
	*l = append(*l, res.SyncLog(routerID, entityType, entityID))
}

func (s *Service) recordSyncLogs(ctx context.Context, logs syncLogs) {
	if len(logs) == 0 {
		return
	}
	if err := s.routers.RecordSyncLogs(ctx, logs...); err != nil {
		s.log.Error("sync log write failed", zap.Int("count", len(logs)), zap.Error(err))
	}
}

// provision runs the creation chain: queue profile, PPP profile, pause, secret.
func (s *Service) provision(
	ctx context.Context,
	sub *domain.Subscription,
	customer *customerdomain.Customer,
	pkg *productdomain.Package,
	router *routerdomain.Router,
	forceLink bool,
	logs *syncLogs,
) (mikrotik.Result, error) {
	if err := s.ensureQueueProfile(ctx, pkg, router, logs); err != nil {
		return mikrotik.Result{}, err
	}
	s.ensurePPPProfile(ctx, pkg, router, logs)

	if err := s.sleep(ctx, s.pause); err != nil {
		return mikrotik.Result{}, err
	}

	res := s.gateway.CreatePPPoEUser(ctx, router, secretSpec(sub, customer, pkg), forceLink)
	logs.add(res, router.ID, entityPPPoEUser, sub.MikrotikUsername)
	if !res.Success {
		return res, &domain.ProvisioningError{Step: "pppoe_user", Message: res.Message}
	}
	return res, nil
}

// ensureQueueProfile makes sure the package's simple queue exists on router
// with the catalog's limits. A synced bookkeeping row is trusted as is.
func (s *Service) ensureQueueProfile(ctx context.Context, pkg *productdomain.Package, router *routerdomain.Router, logs *syncLogs) error {
	_, err := s.syncQueueProfile(ctx, pkg, router, logs, false)
	return err
}

// syncQueueProfile updates the queue in place when its router id is known and
// creates it otherwise, including when the router lost it. Unless force is
// set, a synced row short-circuits the router round trip.
func (s *Service) syncQueueProfile(ctx context.Context, pkg *productdomain.Package, router *routerdomain.Router, logs *syncLogs, force bool) (*routerdomain.QueueProfile, error) {
	profile, err := s.routers.QueueProfile(ctx, pkg.ID, router.ID)
	if err != nil {
		return nil, err
	}
	if profile != nil && profile.IsSynced && !force {
		return profile, nil
	}

	spec := mikrotik.QueueSpecFor(pkg)
	var res mikrotik.Result
	if profile != nil && profile.MikrotikID != nil {
		res = s.gateway.UpdateQueueProfile(ctx, router, spec)
		logs.add(res, router.ID, entityQueue, pkg.QueueName)
	}
	if profile == nil || profile.MikrotikID == nil || (!res.Success && res.Message == mikrotik.MessageQueueNotFound) {
		res = s.gateway.CreateQueueProfile(ctx, router, spec)
		logs.add(res, router.ID, entityQueue, pkg.QueueName)
	}

	row := &routerdomain.QueueProfile{
		PackageID: pkg.ID,
		RouterID:  router.ID,
		Name:      pkg.QueueName,
	}
	if profile != nil {
		row.ID = profile.ID
		row.CreatedAt = profile.CreatedAt
		row.MikrotikID = profile.MikrotikID
		row.LastSyncedAt = profile.LastSyncedAt
	}
	if res.Success {
		now := s.clock.Now(ctx)
		row.IsSynced = true
		row.LastSyncedAt = &now
		if res.RemoteID != "" {
			row.MikrotikID = optional(res.RemoteID)
		}
	} else {
		msg := res.Message
		row.SyncError = &msg
	}
	if err := s.routers.SaveQueueProfile(ctx, row); err != nil {
		s.log.Warn("queue profile bookkeeping failed",
			zap.String("package", pkg.Name),
			zap.String("router", router.Name),
			zap.Error(err),
		)
	}

	if !res.Success {
		return row, &domain.ProvisioningError{Step: "queue_profile", Message: res.Message}
	}
	return row, nil
}

// ensurePPPProfile creates the package's PPP profile and, when the router
// already had one under that name, rewrites its rate-limit.
func (s *Service) ensurePPPProfile(ctx context.Context, pkg *productdomain.Package, router *routerdomain.Router, logs *syncLogs) mikrotik.Result {
	spec := mikrotik.ProfileSpecFor(pkg)
	res := s.gateway.CreatePPPProfile(ctx, router, spec)
	logs.add(res, router.ID, entityPPPProfile, pkg.QueueName)
	if res.Success && res.Existing {
		res = s.gateway.UpdatePPPProfile(ctx, router, spec)
		logs.add(res, router.ID, entityPPPProfile, pkg.QueueName)
	}
	if !res.Success {
		s.log.Warn("ppp profile not ensured",
			zap.String("profile", pkg.QueueName),
			zap.String("router", router.Name),
			zap.String("message", res.Message),
		)
	}
	return res
}

// applyRouter runs a best-effort router call for a subscription whose local
// state already changed, then records the outcome in the sync bookkeeping.
func (s *Service) applyRouter(
	ctx context.Context,
	sub *domain.Subscription,
	call func(router *routerdomain.Router) mikrotik.Result,
	onSuccess func(state *domain.SyncState),
) *domain.ActionResult {
	result := &domain.ActionResult{Subscription: sub}
	if !sub.HasRouter() || !sub.IsSynced {
		return result
	}
	result.RouterAttempted = true

	router, err := s.routers.Get(ctx, *sub.RouterID)
	if err != nil {
		result.RouterMessage = err.Error()
		s.saveSyncState(ctx, sub, false, result.RouterMessage, nil)
		return result
	}

	res := call(router)
	s.recordSyncLogs(ctx, syncLogs{res.SyncLog(router.ID, entityPPPoEUser, sub.MikrotikUsername)})
	result.RouterSuccess = res.Success
	result.RouterMessage = res.Message
	s.saveSyncState(ctx, sub, res.Success, res.Message, onSuccess)

	if !res.Success {
		s.log.Warn("router out of sync with subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("status", string(sub.Status)),
			zap.String("action", string(res.Action)),
			zap.String("message", res.Message),
		)
	}
	return result
}

func (s *Service) saveSyncState(ctx context.Context, sub *domain.Subscription, success bool, message string, onSuccess func(state *domain.SyncState)) {
	now := s.clock.Now(ctx)
	state := domain.SyncState{
		IsSynced:       sub.IsSynced,
		LastSyncedAt:   sub.LastSyncedAt,
		MikrotikUserID: sub.MikrotikUserID,
	}
	if success {
		state.LastSyncedAt = &now
		if onSuccess != nil {
			onSuccess(&state)
		}
	} else {
		state.SyncError = &message
	}
	if err := s.repo.UpdateSyncState(ctx, s.db, sub.ID, state, now); err != nil {
		s.log.Error("sync state write failed", zap.String("subscription_id", sub.ID.String()), zap.Error(err))
		return
	}
	sub.IsSynced = state.IsSynced
	sub.LastSyncedAt = state.LastSyncedAt
	sub.SyncError = state.SyncError
	sub.MikrotikUserID = state.MikrotikUserID
	sub.UpdatedAt = now
}

func secretSpec(sub *domain.Subscription, customer *customerdomain.Customer, pkg *productdomain.Package) mikrotik.SecretSpec {
	return mikrotik.SecretSpec{
		Name:          sub.MikrotikUsername,
		Password:      sub.MikrotikPassword,
		Profile:       pkg.QueueName,
		Comment:       mikrotik.CustomerComment(customer.Code),
		RemoteAddress: deref(sub.StaticIP),
	}
}
