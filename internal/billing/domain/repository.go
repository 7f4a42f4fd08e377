package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BillFilter struct {
	SubscriptionID snowflake.ID
	Status         ledger.BillStatus
	Year           int
	Month          int
	Limit          int
	Offset         int
}

type Repository interface {
	InsertBill(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindBillByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindBillForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindBillForPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, year, month int) (*Bill, error)
	ListBills(ctx context.Context, db *gorm.DB, filter BillFilter) ([]*Bill, error)
	UpdateBill(ctx context.Context, db *gorm.DB, bill *Bill) error
	// MarkOverdueBefore flips pending and partial bills due before cutoff.
	MarkOverdueBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, at time.Time) (int64, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListPayments(ctx context.Context, db *gorm.DB, billID snowflake.ID) ([]*Payment, error)

	InsertAdvance(ctx context.Context, db *gorm.DB, advance *AdvancePayment) error
	UpdateAdvance(ctx context.Context, db *gorm.DB, advance *AdvancePayment) error
	// FindDrawableAdvance locks the newest advance whose remaining balance covers amount.
	FindDrawableAdvance(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, amount decimal.Decimal) (*AdvancePayment, error)
	ListAdvances(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, forUpdate bool) ([]*AdvancePayment, error)
}
