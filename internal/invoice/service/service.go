package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	"github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	"github.com/railzwaylabs/ispbilling/internal/invoice/render"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Sequences     sequencedomain.Generator
	Renderer      render.Renderer
	Bills         billingdomain.Service
	BillingRepo   billingdomain.Repository
	Subscriptions subscriptiondomain.Service
	Customers     customerdomain.Service
	Packages      productdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	seq      sequencedomain.Generator
	renderer render.Renderer

	bills         billingdomain.Service
	billingRepo   billingdomain.Repository
	subscriptions subscriptiondomain.Service
	customers     customerdomain.Service
	packages      productdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		seq:           p.Sequences,
		renderer:      p.Renderer,
		bills:         p.Bills,
		billingRepo:   p.BillingRepo,
		subscriptions: p.Subscriptions,
		customers:     p.Customers,
		packages:      p.Packages,
	}
}

func (s *Service) IssueInvoice(ctx context.Context, billID snowflake.ID) (*domain.Invoice, error) {
	bill, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status == ledger.BillStatusCancelled {
		return nil, domain.ErrInvoiceForCancelledBill
	}
	existing, err := s.repo.FindInvoiceByBill(ctx, s.db, bill.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now(ctx)
	invoice := &domain.Invoice{
		ID:        s.genID.Generate(),
		BillID:    bill.ID,
		IssueDate: clock.StartOfDay(now),
		CreatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixInvoice, now, false)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		return s.repo.InsertInvoice(ctx, tx, invoice)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			if existing, findErr := s.repo.FindInvoiceByBill(ctx, s.db, bill.ID); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("invoice issued",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("bill_number", bill.BillNumber),
	)
	return invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) RenderPDF(ctx context.Context, invoiceID snowflake.ID) ([]byte, error) {
	doc, err := s.Explain(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return s.renderer.Invoice(doc)
}

func (s *Service) CreateDiscount(ctx context.Context, req domain.CreateDiscountRequest) (*domain.Discount, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := ledger.DiscountAmount(req.DiscountType, req.DiscountValue, ledger.MustAmount("100")); err != nil {
		return nil, err
	}
	if !req.DiscountValue.IsPositive() {
		return nil, ledger.ErrInvalidDiscountValue
	}
	start, end := clock.StartOfDay(req.StartDate), clock.StartOfDay(req.EndDate)
	if end.Before(start) {
		return nil, domain.ErrInvalidDiscountPeriod
	}

	now := s.clock.Now(ctx)
	discount := &domain.Discount{
		ID:            s.genID.Generate(),
		Name:          req.Name,
		DiscountType:  req.DiscountType,
		DiscountValue: ledger.Round(req.DiscountValue),
		ApplyTo:       req.ApplyTo,
		StartDate:     start,
		EndDate:       end,
		IsActive:      true,
		MaxUses:       req.MaxUses,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.InsertDiscount(ctx, s.db, discount); err != nil {
		return nil, err
	}
	return discount, nil
}

func (s *Service) GetDiscount(ctx context.Context, id snowflake.ID) (*domain.Discount, error) {
	discount, err := s.repo.FindDiscountByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if discount == nil {
		return nil, domain.ErrDiscountNotFound
	}
	return discount, nil
}

func (s *Service) ListDiscounts(ctx context.Context, activeOnly bool) ([]*domain.Discount, error) {
	return s.repo.ListDiscounts(ctx, s.db, activeOnly)
}

func (s *Service) DeactivateDiscount(ctx context.Context, id snowflake.ID) (*domain.Discount, error) {
	discount, err := s.GetDiscount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !discount.IsActive {
		return discount, nil
	}
	discount.IsActive = false
	discount.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.UpdateDiscount(ctx, s.db, discount); err != nil {
		return nil, err
	}
	return discount, nil
}
