package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() routerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, router *routerdomain.Router) error {
	return db.WithContext(ctx).Create(router).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*routerdomain.Router, error) {
	if id == 0 {
		return nil, nil
	}
	var router routerdomain.Router
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&router).Error; err != nil {
		return nil, err
	}
	if router.ID == 0 {
		return nil, nil
	}
	return &router, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*routerdomain.Router, error) {
	q := db.WithContext(ctx).Model(&routerdomain.Router{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var routers []*routerdomain.Router
	if err := q.Order("name ASC").Find(&routers).Error; err != nil {
		return nil, err
	}
	return routers, nil
}

func (r *repo) UpdateConnectionState(ctx context.Context, db *gorm.DB, id snowflake.ID, online bool, at time.Time) error {
	if online {
		return db.WithContext(ctx).Exec(
			`UPDATE routers SET is_online = ?, last_connected_at = ?, updated_at = ? WHERE id = ?`,
			true, at, at, id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE routers SET is_online = ?, updated_at = ? WHERE id = ?`,
		false, at, id,
	).Error
}

func (r *repo) FindQueueProfile(ctx context.Context, db *gorm.DB, packageID, routerID snowflake.ID) (*routerdomain.QueueProfile, error) {
	var p routerdomain.QueueProfile
	err := db.WithContext(ctx).
		Where("package_id = ? AND router_id = ?", packageID, routerID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) UpsertQueueProfile(ctx context.Context, db *gorm.DB, p *routerdomain.QueueProfile) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "package_id"}, {Name: "router_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "mikrotik_id", "is_synced", "last_synced_at", "sync_error", "updated_at",
		}),
	}).Create(p).Error
}

func (r *repo) InsertSyncLogs(ctx context.Context, db *gorm.DB, logs []*routerdomain.SyncLog) error {
	if len(logs) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&logs).Error
}

func (r *repo) ListSyncLogs(ctx context.Context, db *gorm.DB, filter routerdomain.SyncLogFilter) ([]*routerdomain.SyncLog, error) {
	q := db.WithContext(ctx).Model(&routerdomain.SyncLog{})
	if filter.RouterID != 0 {
		q = q.Where("router_id = ?", filter.RouterID)
	}
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var logs []*routerdomain.SyncLog
	if err := q.Order("created_at ASC, id ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) DeleteSyncLogsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&routerdomain.SyncLog{})
	return res.RowsAffected, res.Error
}
