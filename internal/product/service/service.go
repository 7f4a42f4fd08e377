package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/product/domain"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Package, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Price.IsPositive() || !req.Price.Equal(req.Price.Truncate(2)) {
		return nil, domain.ErrInvalidPrice
	}

	queueName := strings.TrimSpace(req.QueueName)
	if queueName == "" {
		queueName = slug.Make(req.Name)
	}
	validity := req.ValidityDays
	if validity == 0 {
		validity = 30
	}
	priority := req.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	}

	now := s.clock.Now(ctx)
	pkg := &domain.Package{
		ID:                     s.genID.Generate(),
		Name:                   req.Name,
		Description:            req.Description,
		BandwidthDownload:      req.BandwidthDownload,
		BandwidthUpload:        req.BandwidthUpload,
		Price:                  req.Price,
		ValidityDays:           validity,
		QueueName:              queueName,
		BurstLimitDownload:     req.BurstLimitDownload,
		BurstLimitUpload:       req.BurstLimitUpload,
		BurstThresholdDownload: req.BurstThresholdDownload,
		BurstThresholdUpload:   req.BurstThresholdUpload,
		BurstTime:              req.BurstTime,
		Priority:               priority,
		IsActive:               true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.repo.Insert(ctx, s.db, pkg); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, err
	}
	return pkg, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Package, error) {
	pkg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}
	return pkg, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Package, error) {
	return s.repo.List(ctx, s.db, filter)
}

// Update changes the catalog row. When the enforced limits change, every
// router copy of the package is flagged unsynced so the next sync pushes them.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Package, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	pkg, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	before := pkg.RateLimits()

	if req.Name != nil {
		pkg.Name = strings.TrimSpace(*req.Name)
	}
	if req.BandwidthDownload != nil {
		pkg.BandwidthDownload = *req.BandwidthDownload
	}
	if req.BandwidthUpload != nil {
		pkg.BandwidthUpload = *req.BandwidthUpload
	}
	if req.BurstLimitDownload != nil {
		pkg.BurstLimitDownload = req.BurstLimitDownload
	}
	if req.BurstLimitUpload != nil {
		pkg.BurstLimitUpload = req.BurstLimitUpload
	}
	if req.BurstThresholdDownload != nil {
		pkg.BurstThresholdDownload = req.BurstThresholdDownload
	}
	if req.BurstThresholdUpload != nil {
		pkg.BurstThresholdUpload = req.BurstThresholdUpload
	}
	if req.BurstTime != nil {
		pkg.BurstTime = req.BurstTime
	}
	if req.Price != nil {
		if !req.Price.IsPositive() || !req.Price.Equal(req.Price.Truncate(2)) {
			return nil, domain.ErrInvalidPrice
		}
		pkg.Price = *req.Price
	}
	if req.Priority != nil {
		pkg.Priority = *req.Priority
	}
	if req.IsActive != nil {
		pkg.IsActive = *req.IsActive
	}
	pkg.UpdatedAt = s.clock.Now(ctx)
	limitsChanged := pkg.RateLimits() != before

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, pkg); err != nil {
			return err
		}
		if !limitsChanged {
			return nil
		}
		stale, err := s.repo.MarkQueueProfilesUnsynced(ctx, tx, pkg.ID, pkg.UpdatedAt)
		if err != nil {
			return err
		}
		s.log.Info("package limits changed",
			zap.String("package_id", pkg.ID.String()),
			zap.String("limits", pkg.RateLimits()),
			zap.Int64("stale_router_profiles", stale),
		)
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, err
	}
	return pkg, nil
}

// Delete refuses while any subscription, of any status, still references the package.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.repo.CountSubscriptions(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			s.log.Info("package delete refused", zap.String("package_id", id.String()), zap.Int64("subscriptions", count))
			return domain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, id)
	})
}
