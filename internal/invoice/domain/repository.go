package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindInvoiceByBill(ctx context.Context, db *gorm.DB, billID snowflake.ID) (*Invoice, error)

	InsertDiscount(ctx context.Context, db *gorm.DB, discount *Discount) error
	FindDiscountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Discount, error)
	FindDiscountForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Discount, error)
	UpdateDiscount(ctx context.Context, db *gorm.DB, discount *Discount) error
	ListDiscounts(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*Discount, error)

	InsertRefund(ctx context.Context, db *gorm.DB, refund *Refund) error
	FindRefundByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Refund, error)
	FindRefundForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Refund, error)
	UpdateRefund(ctx context.Context, db *gorm.DB, refund *Refund) error
	ListRefunds(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*Refund, error)
}
