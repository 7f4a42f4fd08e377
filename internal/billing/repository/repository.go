package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) InsertBill(ctx context.Context, db *gorm.DB, bill *billingdomain.Bill) error {
	return db.WithContext(ctx).Create(bill).Error
}

func (r *repo) FindBillByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	return findBill(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindBillForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Bill, error) {
	return findBill(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindBillForPeriod(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, year, month int) (*billingdomain.Bill, error) {
	return findBill(db.WithContext(ctx).
		Where("subscription_id = ? AND billing_year = ? AND billing_month = ?", subscriptionID, year, month))
}

func findBill(q *gorm.DB) (*billingdomain.Bill, error) {
	var bill billingdomain.Bill
	if err := q.Limit(1).Find(&bill).Error; err != nil {
		return nil, err
	}
	if bill.ID == 0 {
		return nil, nil
	}
	return &bill, nil
}

func (r *repo) ListBills(ctx context.Context, db *gorm.DB, filter billingdomain.BillFilter) ([]*billingdomain.Bill, error) {
	q := db.WithContext(ctx).Model(&billingdomain.Bill{})
	if filter.SubscriptionID != 0 {
		q = q.Where("subscription_id = ?", filter.SubscriptionID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Year > 0 {
		q = q.Where("billing_year = ?", filter.Year)
	}
	if filter.Month > 0 {
		q = q.Where("billing_month = ?", filter.Month)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var items []*billingdomain.Bill
	if err := q.Order("billing_year DESC, billing_month DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateBill(ctx context.Context, db *gorm.DB, bill *billingdomain.Bill) error {
	return db.WithContext(ctx).Save(bill).Error
}

func (r *repo) MarkOverdueBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&billingdomain.Bill{}).
		Where("status IN ?", []ledger.BillStatus{ledger.BillStatusPending, ledger.BillStatusPartial}).
		Where("due_date < ?", cutoff).
		Updates(map[string]any{
			"status":     ledger.BillStatusOverdue,
			"updated_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *billingdomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, billID snowflake.ID) ([]*billingdomain.Payment, error) {
	var items []*billingdomain.Payment
	err := db.WithContext(ctx).
		Where("bill_id = ?", billID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertAdvance(ctx context.Context, db *gorm.DB, advance *billingdomain.AdvancePayment) error {
	return db.WithContext(ctx).Create(advance).Error
}

func (r *repo) UpdateAdvance(ctx context.Context, db *gorm.DB, advance *billingdomain.AdvancePayment) error {
	return db.WithContext(ctx).Save(advance).Error
}

// FindDrawableAdvance locks the subscription's advances and picks the newest
// one covering amount. The cover check runs on decimals, not in SQL.
func (r *repo) FindDrawableAdvance(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, amount decimal.Decimal) (*billingdomain.AdvancePayment, error) {
	items, err := r.ListAdvances(ctx, db, subscriptionID, true)
	if err != nil {
		return nil, err
	}
	for _, adv := range items {
		if ledger.Covers(adv.Amount, adv.UsedAmount, amount) {
			return adv, nil
		}
	}
	return nil, nil
}

// ListAdvances returns the subscription's advances, newest first.
func (r *repo) ListAdvances(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, forUpdate bool) ([]*billingdomain.AdvancePayment, error) {
	q := db.WithContext(ctx).Where("subscription_id = ?", subscriptionID)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var items []*billingdomain.AdvancePayment
	if err := q.Order("payment_date DESC, created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
