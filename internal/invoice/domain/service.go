package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

type Service interface {
	// IssueInvoice returns the bill's invoice, issuing it on first call.
	IssueInvoice(ctx context.Context, billID snowflake.ID) (*Invoice, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	Explain(ctx context.Context, invoiceID snowflake.ID) (*Explanation, error)
	RenderPDF(ctx context.Context, invoiceID snowflake.ID) ([]byte, error)

	CreateDiscount(ctx context.Context, req CreateDiscountRequest) (*Discount, error)
	GetDiscount(ctx context.Context, id snowflake.ID) (*Discount, error)
	ListDiscounts(ctx context.Context, activeOnly bool) ([]*Discount, error)
	DeactivateDiscount(ctx context.Context, id snowflake.ID) (*Discount, error)

	RequestRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	ApproveRefund(ctx context.Context, id snowflake.ID, notes string) (*Refund, error)
	RejectRefund(ctx context.Context, id snowflake.ID, reason string) (*Refund, error)
	CompleteRefund(ctx context.Context, req CompleteRefundRequest) (*Refund, error)
	GetRefund(ctx context.Context, id snowflake.ID) (*Refund, error)
	ListRefunds(ctx context.Context, subscriptionID snowflake.ID) ([]*Refund, error)
}

type CreateDiscountRequest struct {
	Name          string              `json:"name" validate:"required,max=100"`
	DiscountType  ledger.DiscountType `json:"discount_type" validate:"required,oneof=percentage flat"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	ApplyTo       DiscountScope       `json:"apply_to" validate:"required,oneof=package customer promotional"`
	StartDate     time.Time           `json:"start_date" validate:"required"`
	EndDate       time.Time           `json:"end_date" validate:"required"`
	MaxUses       *int                `json:"max_uses,omitempty" validate:"omitempty,min=1"`
}

type RefundRequest struct {
	SubscriptionID snowflake.ID    `json:"subscription_id" validate:"required"`
	Amount         decimal.Decimal `json:"refund_amount"`
	OtherBalance   decimal.Decimal `json:"other_balance"`
	Method         string          `json:"refund_method" validate:"required,oneof=cash bkash nagad rocket bank card other"`
	Reason         string          `json:"request_reason" validate:"required,max=1000"`
}

type CompleteRefundRequest struct {
	ID            snowflake.ID `json:"id" validate:"required"`
	TransactionID *string      `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	RefundDate    *time.Time   `json:"refund_date,omitempty"`
}

var (
	ErrInvoiceNotFound         = errors.New("invoice_not_found")
	ErrInvoiceForCancelledBill = errors.New("invoice_for_cancelled_bill")
	ErrDiscountNotFound        = errors.New("discount_not_found")
	ErrInvalidDiscountPeriod   = errors.New("discount_end_before_start")
	ErrRefundNotFound          = errors.New("refund_not_found")
	ErrInvalidRefundState      = errors.New("invalid_refund_state")
	ErrRefundExceedsBalance    = errors.New("refund_exceeds_advance_balance")
)
