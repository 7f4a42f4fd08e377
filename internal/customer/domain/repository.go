package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
	ZoneID snowflake.ID
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Customer, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error

	InsertZone(ctx context.Context, db *gorm.DB, zone *Zone) error
	FindZoneByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Zone, error)
	ListZones(ctx context.Context, db *gorm.DB) ([]*Zone, error)
}
