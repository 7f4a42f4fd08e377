package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/billing/domain"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"github.com/shopspring/decimal"
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
	Config        config.Config
	Repo          domain.Repository
	Sequences     sequencedomain.Generator
	Discounts     invoicedomain.Repository
	Subscriptions subscriptiondomain.Service
	Packages      productdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	seq   sequencedomain.Generator

	discounts     invoicedomain.Repository
	subscriptions subscriptiondomain.Service
	packages      productdomain.Service

	graceDays int
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("billing.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		seq:           p.Sequences,
		discounts:     p.Discounts,
		subscriptions: p.Subscriptions,
		packages:      p.Packages,
		graceDays:     p.Config.Billing.GraceDays,
	}
}

func (s *Service) CreateBill(ctx context.Context, req domain.CreateBillRequest) (*domain.Bill, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	price := decimal.Zero
	if req.PackagePrice != nil {
		price = *req.PackagePrice
	} else {
		pkg, err := s.packages.Get(ctx, sub.PackageID)
		if err != nil {
			return nil, err
		}
		price = pkg.Price
	}
	for field, amount := range map[string]decimal.Decimal{
		"package_price": price,
		"other_charges": req.OtherCharges,
		"discount":      req.Discount,
	} {
		if !amount.Equal(amount.Truncate(ledger.Scale)) {
			return nil, validation.Field(field, "scale", "must have at most 2 decimal places")
		}
	}
	if err := ledger.ValidateBillComponents(price, req.OtherCharges, req.Discount); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBillForPeriod(ctx, s.db, sub.ID, req.BillingYear, req.BillingMonth)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrBillExists
	}

	billingDate := billingDateFor(req.BillingYear, time.Month(req.BillingMonth), sub.BillingDay, s.location(ctx))
	if req.BillingDate != nil {
		billingDate = clock.StartOfDay(*req.BillingDate)
	}
	dueDate := billingDate.AddDate(0, 0, s.graceDays)
	if req.DueDate != nil {
		dueDate = clock.StartOfDay(*req.DueDate)
	}

	now := s.clock.Now(ctx)
	bill := &domain.Bill{
		ID:             s.genID.Generate(),
		SubscriptionID: sub.ID,
		BillingYear:    req.BillingYear,
		BillingMonth:   req.BillingMonth,
		BillingDate:    billingDate,
		DueDate:        dueDate,
		PackagePrice:   price,
		OtherCharges:   req.OtherCharges,
		Discount:       req.Discount,
		Status:         ledger.BillStatusPending,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	bill.Recompute()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixBill, billingDate, true)
		if err != nil {
			return err
		}
		bill.BillNumber = number
		return s.repo.InsertBill(ctx, tx, bill)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrBillExists
		}
		return nil, err
	}
	return bill, nil
}

func (s *Service) GenerateBill(ctx context.Context, subscriptionID snowflake.ID, asOf time.Time) (*domain.GenerateOutcome, error) {
	sub, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != subscriptiondomain.StatusActive {
		return nil, domain.ErrSubscriptionInactive
	}

	year, month := asOf.Year(), int(asOf.Month())
	existing, err := s.repo.FindBillForPeriod(ctx, s.db, sub.ID, year, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &domain.GenerateOutcome{Bill: existing}, nil
	}

	pkg, err := s.packages.Get(ctx, sub.PackageID)
	if err != nil {
		return nil, err
	}

	billingDate := clock.StartOfDay(asOf)
	now := s.clock.Now(ctx)
	bill := &domain.Bill{
		ID:              s.genID.Generate(),
		SubscriptionID:  sub.ID,
		BillingYear:     year,
		BillingMonth:    month,
		BillingDate:     billingDate,
		DueDate:         billingDate.AddDate(0, 0, s.graceDays),
		PackagePrice:    ledger.Round(pkg.Price),
		Status:          ledger.BillStatusPending,
		IsAutoGenerated: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var drawn *domain.AdvancePayment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if bill.PackagePrice.IsPositive() {
			adv, err := s.repo.FindDrawableAdvance(ctx, tx, sub.ID, bill.PackagePrice)
			if err != nil {
				return err
			}
			if adv != nil {
				if err := adv.Consume(bill.PackagePrice); err != nil {
					return err
				}
				adv.UpdatedAt = now
				if err := s.repo.UpdateAdvance(ctx, tx, adv); err != nil {
					return err
				}
				bill.PaidAmount = bill.PackagePrice
				drawn = adv
			}
		}
		bill.Recompute()

		number, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixBill, billingDate, true)
		if err != nil {
			return err
		}
		bill.BillNumber = number
		return s.repo.InsertBill(ctx, tx, bill)
	})
	if err != nil {
		if !db.IsUniqueViolation(err) {
			return nil, err
		}
		// Lost the race to another generator for the same period.
		existing, findErr := s.repo.FindBillForPeriod(ctx, s.db, sub.ID, year, month)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		return &domain.GenerateOutcome{Bill: existing}, nil
	}

	fields := []zap.Field{
		zap.String("bill_number", bill.BillNumber),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("status", string(bill.Status)),
	}
	if drawn != nil {
		fields = append(fields, zap.String("advance_number", drawn.AdvanceNumber))
	}
	s.log.Info("bill generated", fields...)

	return &domain.GenerateOutcome{
		Bill:     bill,
		Created:  true,
		AutoPaid: drawn != nil,
	}, nil
}

func (s *Service) GetBill(ctx context.Context, id snowflake.ID) (*domain.Bill, error) {
	bill, err := s.repo.FindBillByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, domain.ErrBillNotFound
	}
	return bill, nil
}

func (s *Service) FindBillForPeriod(ctx context.Context, subscriptionID snowflake.ID, year, month int) (*domain.Bill, error) {
	return s.repo.FindBillForPeriod(ctx, s.db, subscriptionID, year, month)
}

func (s *Service) ListBills(ctx context.Context, filter domain.BillFilter) ([]*domain.Bill, error) {
	return s.repo.ListBills(ctx, s.db, filter)
}

func (s *Service) ListPayments(ctx context.Context, billID snowflake.ID) ([]*domain.Payment, error) {
	return s.repo.ListPayments(ctx, s.db, billID)
}

func (s *Service) ListAdvances(ctx context.Context, subscriptionID snowflake.ID) ([]*domain.AdvancePayment, error) {
	return s.repo.ListAdvances(ctx, s.db, subscriptionID, false)
}

func (s *Service) AdvanceBalance(ctx context.Context, subscriptionID snowflake.ID) (decimal.Decimal, error) {
	items, err := s.repo.ListAdvances(ctx, s.db, subscriptionID, false)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, adv := range items {
		total = total.Add(adv.RemainingBalance)
	}
	return ledger.Round(total), nil
}

// mutateBill locks the bill, applies fn and stores the recomputed result.
func (s *Service) mutateBill(ctx context.Context, billID snowflake.ID, fn func(tx *gorm.DB, bill *domain.Bill) error) (*domain.Bill, error) {
	var bill *domain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = s.repo.FindBillForUpdate(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill == nil {
			return domain.ErrBillNotFound
		}
		if err := fn(tx, bill); err != nil {
			return err
		}
		bill.Recompute()
		bill.UpdatedAt = s.clock.Now(ctx)
		return s.repo.UpdateBill(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// billingDateFor clamps day to the last day of the month.
func billingDateFor(year int, month time.Month, day int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	if last := clock.DaysIn(first); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func (s *Service) location(ctx context.Context) *time.Location {
	return s.clock.Now(ctx).Location()
}

func isSettledOrCancelled(bill *domain.Bill) error {
	switch bill.Status {
	case ledger.BillStatusCancelled:
		return domain.ErrBillCancelled
	case ledger.BillStatusPaid:
		return domain.ErrBillSettled
	}
	return nil
}
