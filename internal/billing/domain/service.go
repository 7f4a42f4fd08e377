package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	CreateBill(ctx context.Context, req CreateBillRequest) (*Bill, error)
	// GenerateBill creates the period bill for asOf unless one exists, drawing
	// from an advance that covers the package price in full.
	GenerateBill(ctx context.Context, subscriptionID snowflake.ID, asOf time.Time) (*GenerateOutcome, error)
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error)
	CreateAdvancePayment(ctx context.Context, req CreateAdvanceRequest) (*AdvancePayment, error)

	ApplyDiscount(ctx context.Context, billID, discountID snowflake.ID) (*Bill, error)
	AddCharge(ctx context.Context, req AddChargeRequest) (*Bill, error)
	CancelBill(ctx context.Context, billID snowflake.ID) (*Bill, error)
	MarkOverdue(ctx context.Context, billID snowflake.ID) (*Bill, error)
	SweepOverdue(ctx context.Context, asOf time.Time) (SweepSummary, error)

	GetBill(ctx context.Context, id snowflake.ID) (*Bill, error)
	// FindBillForPeriod returns nil when the period has no bill.
	FindBillForPeriod(ctx context.Context, subscriptionID snowflake.ID, year, month int) (*Bill, error)
	ListBills(ctx context.Context, filter BillFilter) ([]*Bill, error)
	ListPayments(ctx context.Context, billID snowflake.ID) ([]*Payment, error)
	ListAdvances(ctx context.Context, subscriptionID snowflake.ID) ([]*AdvancePayment, error)
	AdvanceBalance(ctx context.Context, subscriptionID snowflake.ID) (decimal.Decimal, error)
}

type CreateBillRequest struct {
	SubscriptionID snowflake.ID     `json:"subscription_id" validate:"required"`
	BillingYear    int              `json:"billing_year" validate:"min=2000,max=2100"`
	BillingMonth   int              `json:"billing_month" validate:"min=1,max=12"`
	BillingDate    *time.Time       `json:"billing_date,omitempty"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	PackagePrice   *decimal.Decimal `json:"package_price,omitempty"`
	OtherCharges   decimal.Decimal  `json:"other_charges"`
	Discount       decimal.Decimal  `json:"discount"`
	Notes          *string          `json:"notes,omitempty"`
}

type GenerateOutcome struct {
	Bill     *Bill `json:"bill"`
	Created  bool  `json:"created"`
	AutoPaid bool  `json:"auto_paid"`
}

type RecordPaymentRequest struct {
	BillID          snowflake.ID    `json:"bill_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"required,oneof=cash bkash nagad rocket bank card other"`
	ReferenceNumber *string         `json:"reference_number,omitempty" validate:"omitempty,max=100"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"`
	Status          PaymentStatus   `json:"status" validate:"omitempty,oneof=pending completed failed refunded"`
	Notes           *string         `json:"notes,omitempty"`
}

type PaymentResult struct {
	Payment     *Payment `json:"payment"`
	Bill        *Bill    `json:"bill"`
	Reactivated bool     `json:"reactivated"`
	// ReactivationError is set when the bill was settled but the subscription
	// could not be brought back; the payment itself stands.
	ReactivationError string `json:"reactivation_error,omitempty"`
}

type CreateAdvanceRequest struct {
	SubscriptionID     snowflake.ID    `json:"subscription_id" validate:"required"`
	Amount             decimal.Decimal `json:"amount"`
	PaymentMethod      PaymentMethod   `json:"payment_method" validate:"required,oneof=cash bkash nagad rocket bank card other"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	MonthsCovered      int             `json:"months_covered" validate:"omitempty,min=1,max=36"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TransactionID      *string         `json:"transaction_id,omitempty" validate:"omitempty,max=100"`
	Notes              *string         `json:"notes,omitempty"`
}

type AddChargeRequest struct {
	BillID snowflake.ID    `json:"bill_id" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note" validate:"max=255"`
}

type SweepSummary struct {
	AsOf   time.Time `json:"as_of"`
	Marked int64     `json:"marked"`
}

var (
	ErrBillNotFound         = errors.New("bill_not_found")
	ErrBillExists           = errors.New("bill_already_exists_for_period")
	ErrBillCancelled        = errors.New("bill_cancelled")
	ErrBillSettled          = errors.New("bill_already_settled")
	ErrBillHasPayments      = errors.New("bill_has_payments")
	ErrSubscriptionInactive = errors.New("subscription_not_billable")
	ErrDiscountUnavailable  = errors.New("discount_not_available")
)
