package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/billing/domain"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (*domain.PaymentResult, error) {
	if req.Status == "" {
		req.Status = domain.PaymentStatusCompleted
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrAmountNotPositive
	}

	now := s.clock.Now(ctx)
	paymentDate := clock.StartOfDay(now)
	if req.PaymentDate != nil {
		paymentDate = clock.StartOfDay(*req.PaymentDate)
	}
	payment := &domain.Payment{
		ID:              s.genID.Generate(),
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
		PaymentDate:     paymentDate,
		Status:          req.Status,
		Notes:           req.Notes,
		CreatedAt:       now,
	}

	bill, err := s.mutateBill(ctx, req.BillID, func(tx *gorm.DB, bill *domain.Bill) error {
		if bill.Status == ledger.BillStatusCancelled {
			return domain.ErrBillCancelled
		}
		completed := payment.Status == domain.PaymentStatusCompleted
		if completed {
			if bill.Status == ledger.BillStatusPaid {
				return domain.ErrBillSettled
			}
			if err := ledger.ValidatePayment(payment.Amount, bill.DueAmount); err != nil {
				return err
			}
		}

		number, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixPayment, paymentDate, false)
		if err != nil {
			return err
		}
		payment.PaymentNumber = number
		payment.BillID = bill.ID
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		if completed {
			bill.PaidAmount = bill.PaidAmount.Add(payment.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("bill_number", bill.BillNumber),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("bill_status", string(bill.Status)),
	)

	result := &domain.PaymentResult{Payment: payment, Bill: bill}
	if payment.Status == domain.PaymentStatusCompleted && bill.Status == ledger.BillStatusPaid {
		result.Reactivated, result.ReactivationError = s.reactivate(ctx, bill)
	}
	return result, nil
}

// reactivate runs after the settling commit. A failure never undoes the payment.
func (s *Service) reactivate(ctx context.Context, bill *domain.Bill) (bool, string) {
	ok, err := s.subscriptions.ReactivateAfterPayment(ctx, bill.SubscriptionID)
	if err != nil {
		s.log.Warn("reactivation after payment failed",
			zap.String("bill_number", bill.BillNumber),
			zap.String("subscription_id", bill.SubscriptionID.String()),
			zap.Error(err),
		)
		return false, err.Error()
	}
	return ok, ""
}

func (s *Service) CreateAdvancePayment(ctx context.Context, req domain.CreateAdvanceRequest) (*domain.AdvancePayment, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrAmountNotPositive
	}
	if !req.Amount.Equal(req.Amount.Truncate(ledger.Scale)) {
		return nil, ledger.ErrAmountTooPrecise
	}
	if req.DiscountPercentage.IsNegative() || req.DiscountPercentage.GreaterThan(hundred) {
		return nil, validation.Field("discount_percentage", "range", "must be between 0 and 100")
	}
	sub, err := s.subscriptions.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	discount, err := ledger.DiscountAmount(ledger.DiscountTypePercentage, req.DiscountPercentage, req.Amount)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	paymentDate := clock.StartOfDay(now)
	if req.PaymentDate != nil {
		paymentDate = clock.StartOfDay(*req.PaymentDate)
	}
	months := req.MonthsCovered
	if months == 0 {
		months = 1
	}
	adv := &domain.AdvancePayment{
		ID:                 s.genID.Generate(),
		SubscriptionID:     sub.ID,
		Amount:             req.Amount,
		PaymentMethod:      req.PaymentMethod,
		PaymentDate:        paymentDate,
		MonthsCovered:      months,
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     discount,
		UsedAmount:         decimal.Zero,
		TransactionID:      req.TransactionID,
		Notes:              req.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	adv.Recompute()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixAdvance, paymentDate, false)
		if err != nil {
			return err
		}
		adv.AdvanceNumber = number
		return s.repo.InsertAdvance(ctx, tx, adv)
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}

func (s *Service) ApplyDiscount(ctx context.Context, billID, discountID snowflake.ID) (*domain.Bill, error) {
	bill, err := s.mutateBill(ctx, billID, func(tx *gorm.DB, bill *domain.Bill) error {
		if err := isSettledOrCancelled(bill); err != nil {
			return err
		}
		discount, err := s.discounts.FindDiscountForUpdate(ctx, tx, discountID)
		if err != nil {
			return err
		}
		if discount == nil || !discount.IsValid(s.clock.Now(ctx)) {
			return domain.ErrDiscountUnavailable
		}

		base := bill.PackagePrice.Add(bill.OtherCharges).Sub(bill.Discount)
		amount, err := ledger.DiscountAmount(discount.DiscountType, discount.DiscountValue, base)
		if err != nil {
			return err
		}
		next := bill.Discount.Add(amount)
		if err := ledger.ValidateBillComponents(bill.PackagePrice, bill.OtherCharges, next); err != nil {
			return err
		}
		bill.Discount = next
		bill.Notes = appendNote(bill.Notes, "Discount applied: "+discount.Name)

		discount.CurrentUses++
		discount.UpdatedAt = s.clock.Now(ctx)
		return s.discounts.UpdateDiscount(ctx, tx, discount)
	})
	if err != nil {
		return nil, err
	}
	if bill.Status == ledger.BillStatusPaid {
		s.reactivate(ctx, bill)
	}
	return bill, nil
}

func (s *Service) AddCharge(ctx context.Context, req domain.AddChargeRequest) (*domain.Bill, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrAmountNotPositive
	}
	if !req.Amount.Equal(req.Amount.Truncate(ledger.Scale)) {
		return nil, ledger.ErrAmountTooPrecise
	}
	return s.mutateBill(ctx, req.BillID, func(tx *gorm.DB, bill *domain.Bill) error {
		if bill.Status == ledger.BillStatusCancelled {
			return domain.ErrBillCancelled
		}
		bill.OtherCharges = bill.OtherCharges.Add(req.Amount)
		if note := strings.TrimSpace(req.Note); note != "" {
			bill.Notes = appendNote(bill.Notes, note)
		}
		return nil
	})
}

func (s *Service) CancelBill(ctx context.Context, billID snowflake.ID) (*domain.Bill, error) {
	return s.mutateBill(ctx, billID, func(tx *gorm.DB, bill *domain.Bill) error {
		if bill.Status == ledger.BillStatusCancelled {
			return nil
		}
		if bill.PaidAmount.IsPositive() {
			return domain.ErrBillHasPayments
		}
		bill.Status = ledger.BillStatusCancelled
		return nil
	})
}

func (s *Service) MarkOverdue(ctx context.Context, billID snowflake.ID) (*domain.Bill, error) {
	return s.mutateBill(ctx, billID, func(tx *gorm.DB, bill *domain.Bill) error {
		if err := isSettledOrCancelled(bill); err != nil {
			return err
		}
		bill.Status = ledger.BillStatusOverdue
		return nil
	})
}

func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) (domain.SweepSummary, error) {
	summary := domain.SweepSummary{AsOf: asOf}
	n, err := s.repo.MarkOverdueBefore(ctx, s.db, clock.StartOfDay(asOf), s.clock.Now(ctx))
	if err != nil {
		return summary, err
	}
	summary.Marked = n
	if n > 0 {
		s.log.Info("overdue sweep", zap.Time("as_of", asOf), zap.Int64("marked", n))
	}
	return summary, nil
}

func appendNote(notes *string, line string) *string {
	if notes == nil || *notes == "" {
		return &line
	}
	joined := *notes + "\n" + line
	return &joined
}
