package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindOpenByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Where("status IN ?", []subscriptiondomain.Status{subscriptiondomain.StatusActive, subscriptiondomain.StatusSuspended}).
		Order("created_at DESC"))
}

func (r *repo) findOne(q *gorm.DB) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	if err := q.Limit(1).Find(&sub).Error; err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) UsernameExists(ctx context.Context, db *gorm.DB, username string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("mikrotik_username = ?", username).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) CountOpenOnRouter(ctx context.Context, db *gorm.DB, packageID, routerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("package_id = ? AND router_id = ? AND status IN ?", packageID, routerID,
			[]subscriptiondomain.Status{subscriptiondomain.StatusActive, subscriptiondomain.StatusSuspended}).
		Count(&count).Error
	return count, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter subscriptiondomain.ListFilter) ([]*subscriptiondomain.Subscription, error) {
	q := db.WithContext(ctx).Model(&subscriptiondomain.Subscription{})
	if filter.CustomerID != 0 {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.RouterID != 0 {
		q = q.Where("router_id = ?", filter.RouterID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var items []*subscriptiondomain.Subscription
	if err := q.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repo) UpdateSyncState(ctx context.Context, db *gorm.DB, id snowflake.ID, state subscriptiondomain.SyncState, at time.Time) error {
	return db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_synced_to_mikrotik": state.IsSynced,
			"last_synced_at":        state.LastSyncedAt,
			"sync_error":            state.SyncError,
			"mikrotik_user_id":      state.MikrotikUserID,
			"updated_at":            at,
		}).Error
}

func (r *repo) ListBillable(ctx context.Context, db *gorm.DB, day int, throughMonthEnd bool) ([]*subscriptiondomain.Subscription, error) {
	q := db.WithContext(ctx).
		Where("status = ?", subscriptiondomain.StatusActive)
	if throughMonthEnd {
		q = q.Where("billing_day >= ?", day)
	} else {
		q = q.Where("billing_day = ?", day)
	}

	var items []*subscriptiondomain.Subscription
	if err := q.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPastBillingDay(ctx context.Context, db *gorm.DB, day int) ([]*subscriptiondomain.Subscription, error) {
	var items []*subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("status = ?", subscriptiondomain.StatusActive).
		Where("router_id IS NOT NULL").
		Where("billing_day < ?", day).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, entry *subscriptiondomain.History) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*subscriptiondomain.History, error) {
	var items []*subscriptiondomain.History
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
