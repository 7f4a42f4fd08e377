package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return findInvoice(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindInvoiceByBill(ctx context.Context, db *gorm.DB, billID snowflake.ID) (*invoicedomain.Invoice, error) {
	return findInvoice(db.WithContext(ctx).Where("bill_id = ?", billID))
}

func findInvoice(q *gorm.DB) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	if err := q.Limit(1).Find(&inv).Error; err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) InsertDiscount(ctx context.Context, db *gorm.DB, discount *invoicedomain.Discount) error {
	return db.WithContext(ctx).Create(discount).Error
}

func (r *repo) FindDiscountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Discount, error) {
	return findDiscount(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindDiscountForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Discount, error) {
	return findDiscount(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func findDiscount(q *gorm.DB) (*invoicedomain.Discount, error) {
	var d invoicedomain.Discount
	if err := q.Limit(1).Find(&d).Error; err != nil {
		return nil, err
	}
	if d.ID == 0 {
		return nil, nil
	}
	return &d, nil
}

func (r *repo) UpdateDiscount(ctx context.Context, db *gorm.DB, discount *invoicedomain.Discount) error {
	return db.WithContext(ctx).Save(discount).Error
}

func (r *repo) ListDiscounts(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*invoicedomain.Discount, error) {
	q := db.WithContext(ctx).Model(&invoicedomain.Discount{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var items []*invoicedomain.Discount
	if err := q.Order("start_date DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertRefund(ctx context.Context, db *gorm.DB, refund *invoicedomain.Refund) error {
	return db.WithContext(ctx).Create(refund).Error
}

func (r *repo) FindRefundByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Refund, error) {
	return findRefund(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindRefundForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Refund, error) {
	return findRefund(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func findRefund(q *gorm.DB) (*invoicedomain.Refund, error) {
	var rf invoicedomain.Refund
	if err := q.Limit(1).Find(&rf).Error; err != nil {
		return nil, err
	}
	if rf.ID == 0 {
		return nil, nil
	}
	return &rf, nil
}

func (r *repo) UpdateRefund(ctx context.Context, db *gorm.DB, refund *invoicedomain.Refund) error {
	return db.WithContext(ctx).Save(refund).Error
}

func (r *repo) ListRefunds(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*invoicedomain.Refund, error) {
	q := db.WithContext(ctx).Model(&invoicedomain.Refund{})
	if subscriptionID != 0 {
		q = q.Where("subscription_id = ?", subscriptionID)
	}
	var items []*invoicedomain.Refund
	if err := q.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
