package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SyncLogFilter struct {
	RouterID   snowflake.ID
	EntityType string
	EntityID   string
	Action     SyncAction
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, router *Router) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Router, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*Router, error)
	UpdateConnectionState(ctx context.Context, db *gorm.DB, id snowflake.ID, online bool, at time.Time) error

	FindQueueProfile(ctx context.Context, db *gorm.DB, packageID, routerID snowflake.ID) (*QueueProfile, error)
	UpsertQueueProfile(ctx context.Context, db *gorm.DB, profile *QueueProfile) error

	InsertSyncLogs(ctx context.Context, db *gorm.DB, logs []*SyncLog) error
	ListSyncLogs(ctx context.Context, db *gorm.DB, filter SyncLogFilter) ([]*SyncLog, error)
	DeleteSyncLogsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
