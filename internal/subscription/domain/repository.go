package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	CustomerID snowflake.ID
	RouterID   snowflake.ID
	Status     Status
	Limit      int
	Offset     int
}

// SyncState is the router bookkeeping written after a gateway call.
// Nil pointers are stored as NULL.
type SyncState struct {
	IsSynced       bool
	LastSyncedAt   *time.Time
	SyncError      *string
	MikrotikUserID *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindOpenByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*Subscription, error)
	UsernameExists(ctx context.Context, db *gorm.DB, username string) (bool, error)
	CountOpenOnRouter(ctx context.Context, db *gorm.DB, packageID, routerID snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
	UpdateSyncState(ctx context.Context, db *gorm.DB, id snowflake.ID, state SyncState, at time.Time) error

	// ListBillable returns active subscriptions billed on day. With throughMonthEnd
	// set, billing days past day are included too, for short months.
	ListBillable(ctx context.Context, db *gorm.DB, day int, throughMonthEnd bool) ([]*Subscription, error)
	// ListPastBillingDay returns active, router-bound subscriptions whose billing day is before day.
	ListPastBillingDay(ctx context.Context, db *gorm.DB, day int) ([]*Subscription, error)

	InsertHistory(ctx context.Context, db *gorm.DB, entry *History) error
	ListHistory(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*History, error)
}
