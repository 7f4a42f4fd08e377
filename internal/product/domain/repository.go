package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Active *bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pkg *Package) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Package, error)
	Update(ctx context.Context, db *gorm.DB, pkg *Package) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountSubscriptions(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	// MarkQueueProfilesUnsynced flags every router copy of the package as stale.
	MarkQueueProfilesUnsynced(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
}
