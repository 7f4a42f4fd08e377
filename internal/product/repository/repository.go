package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() productdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *productdomain.Package) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*productdomain.Package, error) {
	if id == 0 {
		return nil, nil
	}
	var p productdomain.Package
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter productdomain.ListFilter) ([]*productdomain.Package, error) {
	q := db.WithContext(ctx).Model(&productdomain.Package{})
	if filter.Active != nil {
		q = q.Where("is_active = ?", *filter.Active)
	}
	var items []*productdomain.Package
	if err := q.Order("price ASC, name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, p *productdomain.Package) error {
	return db.WithContext(ctx).Save(p).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM packages WHERE id = ?`, id).Error
}

func (r *repo) CountSubscriptions(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM subscriptions WHERE package_id = ?`, id).Scan(&count).Error
	return count, err
}

func (r *repo) MarkQueueProfilesUnsynced(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE mikrotik_queue_profiles SET is_synced = ?, updated_at = ? WHERE package_id = ? AND is_synced = ?`,
		false, at, id, true,
	)
	return res.RowsAffected, res.Error
}
