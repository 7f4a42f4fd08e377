package service

import (
	"context"

	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/zap"
)

// SyncPackageToRouter always talks to the router, even when the bookkeeping
// row claims the queue is in sync. A failed queue or PPP profile call is
// reported as a provisioning error.
func (s *Service) SyncPackageToRouter(ctx context.Context, req domain.SyncPackageRequest) (*domain.PackageSyncResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	pkg, err := s.packages.Get(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	router, err := s.routers.Get(ctx, req.RouterID)
	if err != nil {
		return nil, err
	}
	if !router.IsActive {
		return nil, routerdomain.ErrInactive
	}

	var logs syncLogs
	defer func() { s.recordSyncLogs(ctx, logs) }()

	profile, err := s.syncQueueProfile(ctx, pkg, router, &logs, true)
	if err != nil {
		return nil, err
	}
	res := s.ensurePPPProfile(ctx, pkg, router, &logs)

	s.log.Info("package synced to router",
		zap.String("package", pkg.Name),
		zap.String("router", router.Name),
		zap.Bool("profile_success", res.Success),
	)
	if !res.Success {
		return nil, &domain.ProvisioningError{Step: "ppp_profile", Message: res.Message}
	}
	return &domain.PackageSyncResult{
		QueueProfile:   profile,
		ProfileMessage: res.Message,
	}, nil
}

// RemovePackageFromRouter leaves the PPP profile in place; only the simple
// queue is removed. A queue the router no longer has counts as removed.
func (s *Service) RemovePackageFromRouter(ctx context.Context, req domain.SyncPackageRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	pkg, err := s.packages.Get(ctx, req.PackageID)
	if err != nil {
		return err
	}
	router, err := s.routers.Get(ctx, req.RouterID)
	if err != nil {
		return err
	}
	inUse, err := s.repo.CountOpenOnRouter(ctx, s.db, pkg.ID, router.ID)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return domain.ErrPackageInUseOnRouter
	}

	res := s.gateway.DeleteQueueProfile(ctx, router, pkg.QueueName)
	s.recordSyncLogs(ctx, syncLogs{res.SyncLog(router.ID, entityQueue, pkg.QueueName)})
	if !res.Success && res.Message != mikrotik.MessageQueueNotFound {
		return &domain.ProvisioningError{Step: "queue_profile", Message: res.Message}
	}

	profile, err := s.routers.QueueProfile(ctx, pkg.ID, router.ID)
	if err != nil {
		return err
	}
	if profile != nil {
		profile.IsSynced = false
		profile.MikrotikID = nil
		profile.SyncError = nil
		if err := s.routers.SaveQueueProfile(ctx, profile); err != nil {
			return err
		}
	}
	s.log.Info("package removed from router", zap.String("package", pkg.Name), zap.String("router", router.Name))
	return nil
}
