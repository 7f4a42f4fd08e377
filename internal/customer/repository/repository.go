package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() customerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *customerdomain.Customer) error {
	return db.WithContext(ctx).Create(c).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.Customer, error) {
	if id == 0 {
		return nil, nil
	}
	var c customerdomain.Customer
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*customerdomain.Customer, error) {
	var c customerdomain.Customer
	err := db.WithContext(ctx).Where("customer_code = ?", code).Limit(1).Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter customerdomain.ListFilter) ([]*customerdomain.Customer, error) {
	q := db.WithContext(ctx).Model(&customerdomain.Customer{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ZoneID != 0 {
		q = q.Where("zone_id = ?", filter.ZoneID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var items []*customerdomain.Customer
	if err := q.Order("customer_code ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status customerdomain.Status) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	).Error
}

func (r *repo) InsertZone(ctx context.Context, db *gorm.DB, z *customerdomain.Zone) error {
	return db.WithContext(ctx).Create(z).Error
}

func (r *repo) FindZoneByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*customerdomain.Zone, error) {
	if id == 0 {
		return nil, nil
	}
	var z customerdomain.Zone
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&z).Error; err != nil {
		return nil, err
	}
	if z.ID == 0 {
		return nil, nil
	}
	return &z, nil
}

func (r *repo) ListZones(ctx context.Context, db *gorm.DB) ([]*customerdomain.Zone, error) {
	var zones []*customerdomain.Zone
	if err := db.WithContext(ctx).Order("name ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}
