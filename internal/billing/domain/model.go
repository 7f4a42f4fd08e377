package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

// Bill is one subscription period. Total, Due and Status are derived; change
// the inputs and call Recompute.
type Bill struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	BillNumber      string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"bill_number"`
	SubscriptionID  snowflake.ID      `gorm:"not null;uniqueIndex:ux_bills_subscription_period,priority:1" json:"subscription_id"`
	BillingYear     int               `gorm:"not null;uniqueIndex:ux_bills_subscription_period,priority:2" json:"billing_year"`
	BillingMonth    int               `gorm:"not null;uniqueIndex:ux_bills_subscription_period,priority:3" json:"billing_month"`
	BillingDate     time.Time         `gorm:"type:date;not null" json:"billing_date"`
	DueDate         time.Time         `gorm:"type:date;not null;index" json:"due_date"`
	PackagePrice    decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"package_price"`
	Discount        decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
	OtherCharges    decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"other_charges"`
	TotalAmount     decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	PaidAmount      decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"paid_amount"`
	DueAmount       decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"due_amount"`
	Status          ledger.BillStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	IsAutoGenerated bool              `gorm:"not null;default:false" json:"is_auto_generated"`
	Notes           *string           `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}

func (Bill) TableName() string { return "bills" }

func (b *Bill) Recompute() {
	out := ledger.RecomputeBill(ledger.BillAmounts{
		PackagePrice: b.PackagePrice,
		OtherCharges: b.OtherCharges,
		Discount:     b.Discount,
		Paid:         b.PaidAmount,
		Status:       b.Status,
	})
	b.TotalAmount = out.Total
	b.PaidAmount = out.Paid
	b.DueAmount = out.Due
	b.Status = out.Status
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodBkash  PaymentMethod = "bkash"
	PaymentMethodNagad  PaymentMethod = "nagad"
	PaymentMethodRocket PaymentMethod = "rocket"
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOther  PaymentMethod = "other"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is append-only. Only completed payments move a bill's paid amount.
type Payment struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	PaymentNumber   string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"payment_number"`
	BillID          snowflake.ID    `gorm:"not null;index" json:"bill_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	ReferenceNumber *string         `gorm:"type:varchar(100)" json:"reference_number,omitempty"`
	PaymentDate     time.Time       `gorm:"type:date;not null" json:"payment_date"`
	Status          PaymentStatus   `gorm:"type:varchar(20);not null" json:"status"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// AdvancePayment is a prepaid wallet drawn down by billing. UsedAmount only grows.
type AdvancePayment struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	AdvanceNumber      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"advance_number"`
	SubscriptionID     snowflake.ID    `gorm:"not null;index" json:"subscription_id"`
	Amount             decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentMethod      PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentDate        time.Time       `gorm:"type:date;not null" json:"payment_date"`
	MonthsCovered      int             `gorm:"not null;default:1" json:"months_covered"`
	DiscountPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	UsedAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"used_amount"`
	RemainingBalance   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"remaining_balance"`
	TransactionID      *string         `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`
	Notes              *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

func (AdvancePayment) TableName() string { return "advance_payments" }

func (a *AdvancePayment) Recompute() {
	a.UsedAmount = ledger.Round(a.UsedAmount)
	a.RemainingBalance = ledger.AdvanceBalance(a.Amount, a.UsedAmount)
}

// Consume draws amount from the advance.
func (a *AdvancePayment) Consume(amount decimal.Decimal) error {
	used, err := ledger.DrawAdvance(a.Amount, a.UsedAmount, amount)
	if err != nil {
		return err
	}
	a.UsedAmount = used
	a.Recompute()
	return nil
}
