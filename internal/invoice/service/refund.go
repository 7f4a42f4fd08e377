package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestRefund snapshots the subscription's advance balance. The refund may
// not exceed that balance plus any other balance owed to the customer.
func (s *Service) RequestRefund(ctx context.Context, req domain.RefundRequest) (*domain.Refund, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrAmountNotPositive
	}
	if req.OtherBalance.IsNegative() {
		return nil, validation.Field("other_balance", "min", "must not be negative")
	}
	sub, err := s.subscriptions.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	balance, err := s.bills.AdvanceBalance(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(balance.Add(req.OtherBalance)) {
		return nil, domain.ErrRefundExceedsBalance
	}

	now := s.clock.Now(ctx)
	refund := &domain.Refund{
		ID:             s.genID.Generate(),
		SubscriptionID: sub.ID,
		RefundAmount:   ledger.Round(req.Amount),
		AdvanceBalance: balance,
		OtherBalance:   ledger.Round(req.OtherBalance),
		RefundMethod:   req.Method,
		Status:         domain.RefundStatusPending,
		RequestReason:  req.Reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.NextCode(ctx, tx, sequencedomain.PrefixRefund, now, false)
		if err != nil {
			return err
		}
		refund.RefundNumber = number
		return s.repo.InsertRefund(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *Service) ApproveRefund(ctx context.Context, id snowflake.ID, notes string) (*domain.Refund, error) {
	return s.moveRefund(ctx, id, domain.RefundStatusPending, domain.RefundStatusApproved, func(tx *gorm.DB, r *domain.Refund) error {
		if notes = strings.TrimSpace(notes); notes != "" {
			r.ApprovalNotes = &notes
		}
		return nil
	})
}

func (s *Service) RejectRefund(ctx context.Context, id snowflake.ID, reason string) (*domain.Refund, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validation.Field("rejection_reason", "required", "is required")
	}
	return s.moveRefund(ctx, id, domain.RefundStatusPending, domain.RefundStatusRejected, func(tx *gorm.DB, r *domain.Refund) error {
		r.RejectionReason = &reason
		return nil
	})
}

// CompleteRefund pays the refund out of the advances, oldest first.
func (s *Service) CompleteRefund(ctx context.Context, req domain.CompleteRefundRequest) (*domain.Refund, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	refund, err := s.moveRefund(ctx, req.ID, domain.RefundStatusApproved, domain.RefundStatusCompleted, func(tx *gorm.DB, r *domain.Refund) error {
		draw := decimal.Min(r.RefundAmount, r.AdvanceBalance)
		if err := s.drawAdvances(ctx, tx, r.SubscriptionID, draw); err != nil {
			return err
		}
		day := clock.StartOfDay(s.clock.Now(ctx))
		if req.RefundDate != nil {
			day = clock.StartOfDay(*req.RefundDate)
		}
		r.RefundDate = &day
		r.TransactionID = req.TransactionID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("refund completed",
		zap.String("refund_number", refund.RefundNumber),
		zap.String("amount", refund.RefundAmount.StringFixed(2)),
	)
	return refund, nil
}

func (s *Service) drawAdvances(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	advances, err := s.billingRepo.ListAdvances(ctx, tx, subscriptionID, true)
	if err != nil {
		return err
	}
	now := s.clock.Now(ctx)
	left := amount
	for i := len(advances) - 1; i >= 0 && left.IsPositive(); i-- {
		adv := advances[i]
		if !adv.RemainingBalance.IsPositive() {
			continue
		}
		take := decimal.Min(left, adv.RemainingBalance)
		if err := adv.Consume(take); err != nil {
			return err
		}
		adv.UpdatedAt = now
		if err := s.billingRepo.UpdateAdvance(ctx, tx, adv); err != nil {
			return err
		}
		left = left.Sub(take)
	}
	if left.IsPositive() {
		return domain.ErrRefundExceedsBalance
	}
	return nil
}

func (s *Service) moveRefund(
	ctx context.Context,
	id snowflake.ID,
	from, to domain.RefundStatus,
	mutate func(tx *gorm.DB, r *domain.Refund) error,
) (*domain.Refund, error) {
	var refund *domain.Refund
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		refund, err = s.repo.FindRefundForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if refund == nil {
			return domain.ErrRefundNotFound
		}
		if refund.Status != from {
			return domain.ErrInvalidRefundState
		}
		if err := mutate(tx, refund); err != nil {
			return err
		}
		refund.Status = to
		refund.UpdatedAt = s.clock.Now(ctx)
		return s.repo.UpdateRefund(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *Service) GetRefund(ctx context.Context, id snowflake.ID) (*domain.Refund, error) {
	refund, err := s.repo.FindRefundByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, domain.ErrRefundNotFound
	}
	return refund, nil
}

func (s *Service) ListRefunds(ctx context.Context, subscriptionID snowflake.ID) ([]*domain.Refund, error) {
	return s.repo.ListRefunds(ctx, s.db, subscriptionID)
}
