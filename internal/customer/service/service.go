package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/customer/domain"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Sequence sequencedomain.Generator
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	seq   sequencedomain.Generator
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		seq:   p.Sequence,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.BillingType == "" {
		req.BillingType = domain.BillingTypePersonal
	}

	if req.ZoneID != nil {
		zone, err := s.repo.FindZoneByID(ctx, s.db, *req.ZoneID)
		if err != nil {
			return nil, err
		}
		if zone == nil {
			return nil, domain.ErrZoneNotFound
		}
	}

	now := s.clock.Now(ctx)
	customer := &domain.Customer{
		ID:          s.genID.Generate(),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		ZoneID:      req.ZoneID,
		BillingType: req.BillingType,
		MacAddress:  req.MacAddress,
		StaticIP:    req.StaticIP,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixCustomer, now, false)
		if err != nil {
			return err
		}
		customer.Code = code
		return s.repo.Insert(ctx, tx, customer)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("customer_code", customer.Code),
	)
	return customer, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Customer, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status) (*domain.Customer, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer.Status == status {
		return customer, nil
	}
	if !isTransitionAllowed(customer.Status, status) {
		return nil, domain.ErrInvalidTransition
	}
	if err := s.repo.UpdateStatus(ctx, s.db, id, status); err != nil {
		return nil, err
	}
	customer.Status = status
	return customer, nil
}

func (s *Service) CreateZone(ctx context.Context, req domain.CreateZoneRequest) (*domain.Zone, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	zone := &domain.Zone{
		ID:          s.genID.Generate(),
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Status:      domain.ZoneStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertZone(ctx, s.db, zone); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrZoneExists
		}
		return nil, err
	}
	return zone, nil
}

func (s *Service) ListZones(ctx context.Context) ([]*domain.Zone, error) {
	return s.repo.ListZones(ctx, s.db)
}

// Closed is terminal; every other status can move to any other.
func isTransitionAllowed(from, to domain.Status) bool {
	switch from {
	case domain.StatusClosed:
		return false
	case domain.StatusActive, domain.StatusSuspended, domain.StatusInactive:
		switch to {
		case domain.StatusActive, domain.StatusSuspended, domain.StatusInactive, domain.StatusClosed:
			return true
		}
	}
	return false
}

