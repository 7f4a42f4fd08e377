package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	// StatusExpired is reserved; no operation transitions into it.
	StatusExpired Status = "expired"
)

// Open reports whether the status counts toward the one-open-subscription-per-customer rule.
func (s Status) Open() bool {
	return s == StatusActive || s == StatusSuspended
}

// Subscription binds a customer to a package and, optionally, to the router
// that carries the customer's PPPoE secret.
type Subscription struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID        snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	PackageID         snowflake.ID    `gorm:"not null;index" json:"package_id"`
	RouterID          *snowflake.ID   `gorm:"index" json:"router_id,omitempty"`
	BillingDay        int             `gorm:"not null;index" json:"billing_day"`
	BillingStartMonth *time.Time      `gorm:"type:date" json:"billing_start_month,omitempty"`
	StartDate         time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate           *time.Time      `gorm:"type:date" json:"end_date,omitempty"`
	Status            Status          `gorm:"type:varchar(20);not null;index" json:"status"`
	MikrotikUsername  string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"mikrotik_username"`
	MikrotikPassword  string          `gorm:"type:varchar(100);not null" json:"mikrotik_password"`
	MikrotikUserID    *string         `gorm:"type:varchar(50)" json:"mikrotik_user_id,omitempty"`
	StaticIP          *string         `gorm:"type:varchar(45)" json:"static_ip,omitempty"`
	IsSynced          bool            `gorm:"column:is_synced_to_mikrotik;not null;default:false" json:"is_synced_to_mikrotik"`
	LastSyncedAt      *time.Time      `json:"last_synced_at,omitempty"`
	SyncError         *string         `gorm:"type:text" json:"sync_error,omitempty"`
	ConnectionFee     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"connection_fee"`
	ReconnectionFee   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"reconnection_fee"`
	Notes             *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// HasRouter reports whether router side effects apply at all.
func (s *Subscription) HasRouter() bool {
	return s.RouterID != nil && *s.RouterID != 0
}

type HistoryAction string

const (
	HistoryCreated        HistoryAction = "created"
	HistoryActivated      HistoryAction = "activated"
	HistorySuspended      HistoryAction = "suspended"
	HistoryCancelled      HistoryAction = "cancelled"
	HistoryPackageChanged HistoryAction = "package_changed"
	HistoryRouterChanged  HistoryAction = "router_changed"
)

// History is append-only.
type History struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID   `gorm:"not null;index" json:"subscription_id"`
	Action         HistoryAction  `gorm:"type:varchar(20);not null" json:"action"`
	OldValue       datatypes.JSON `json:"old_value,omitempty"`
	NewValue       datatypes.JSON `json:"new_value,omitempty"`
	Actor          string         `gorm:"type:varchar(100);not null" json:"actor"`
	Notes          *string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (History) TableName() string { return "subscription_history" }

const (
	ActorSystemBilling = "system:billing"
	ActorSystemPayment = "system:payment"
	ActorStaff         = "staff"
)
