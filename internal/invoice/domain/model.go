package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

// Invoice is the issued document for a bill. One per bill.
type Invoice struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceNumber string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"invoice_number"`
	BillID        snowflake.ID `gorm:"not null;uniqueIndex" json:"bill_id"`
	IssueDate     time.Time    `gorm:"type:date;not null" json:"issue_date"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

type DiscountScope string

const (
	DiscountScopePackage     DiscountScope = "package"
	DiscountScopeCustomer    DiscountScope = "customer"
	DiscountScopePromotional DiscountScope = "promotional"
)

type Discount struct {
	ID            snowflake.ID        `gorm:"primaryKey" json:"id"`
	Name          string              `gorm:"type:varchar(100);not null" json:"name"`
	DiscountType  ledger.DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	ApplyTo       DiscountScope       `gorm:"type:varchar(20);not null" json:"apply_to"`
	StartDate     time.Time           `gorm:"type:date;not null" json:"start_date"`
	EndDate       time.Time           `gorm:"type:date;not null" json:"end_date"`
	IsActive      bool                `gorm:"not null;default:true" json:"is_active"`
	MaxUses       *int                `json:"max_uses,omitempty"`
	CurrentUses   int                 `gorm:"not null;default:0" json:"current_uses"`
	CreatedAt     time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"not null" json:"updated_at"`
}

func (Discount) TableName() string { return "discounts" }

// IsValid reports whether the discount can be applied on at's date.
func (d *Discount) IsValid(at time.Time) bool {
	if !d.IsActive {
		return false
	}
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(d.StartDate.Year(), d.StartDate.Month(), d.StartDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(d.EndDate.Year(), d.EndDate.Month(), d.EndDate.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(start) || day.After(end) {
		return false
	}
	return d.MaxUses == nil || d.CurrentUses < *d.MaxUses
}

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusCompleted RefundStatus = "completed"
)

type Refund struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	RefundNumber    string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"refund_number"`
	SubscriptionID  snowflake.ID    `gorm:"not null;index" json:"subscription_id"`
	RefundAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"refund_amount"`
	AdvanceBalance  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"advance_balance"`
	OtherBalance    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"other_balance"`
	RefundMethod    string          `gorm:"type:varchar(20);not null" json:"refund_method"`
	Status          RefundStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	RequestReason   string          `gorm:"type:text;not null" json:"request_reason"`
	ApprovalNotes   *string         `gorm:"type:text" json:"approval_notes,omitempty"`
	RejectionReason *string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	TransactionID   *string         `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`
	RefundDate      *time.Time      `gorm:"type:date" json:"refund_date,omitempty"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (Refund) TableName() string { return "refunds" }

// Explanation is the printable breakdown of an invoice.
type Explanation struct {
	InvoiceNumber string            `json:"invoice_number"`
	IssueDate     time.Time         `json:"issue_date"`
	BillNumber    string            `json:"bill_number"`
	Period        string            `json:"period"`
	DueDate       time.Time         `json:"due_date"`
	CustomerCode  string            `json:"customer_code"`
	CustomerName  string            `json:"customer_name"`
	Address       string            `json:"address"`
	PackageName   string            `json:"package_name"`
	Lines         []ExplanationLine `json:"lines"`
	Total         decimal.Decimal   `json:"total"`
	Paid          decimal.Decimal   `json:"paid"`
	Due           decimal.Decimal   `json:"due"`
	Status        ledger.BillStatus `json:"status"`
}

type ExplanationLine struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}
