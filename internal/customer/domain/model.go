package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
	StatusClosed    Status = "closed"
)

type BillingType string

const (
	BillingTypePersonal BillingType = "personal"
	BillingTypeBusiness BillingType = "business"
	BillingTypeFree     BillingType = "free"
)

type ZoneStatus string

const (
	ZoneStatusActive   ZoneStatus = "active"
	ZoneStatusInactive ZoneStatus = "inactive"
)

type Zone struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Code        string       `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Description *string      `json:"description,omitempty"`
	Status      ZoneStatus   `gorm:"type:varchar(10);not null;default:'active'" json:"status"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Zone) TableName() string { return "zones" }

// Customer is a subscriber identity. Code (ISP-YYYY-NNNN) never changes after creation.
type Customer struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code        string        `gorm:"column:customer_code;type:varchar(50);uniqueIndex;not null" json:"customer_code"`
	Name        string        `gorm:"type:varchar(100);not null" json:"name"`
	Email       *string       `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone       string        `gorm:"type:varchar(32);not null" json:"phone"`
	Address     string        `gorm:"type:text;not null" json:"address"`
	ZoneID      *snowflake.ID `gorm:"index" json:"zone_id,omitempty"`
	BillingType BillingType   `gorm:"type:varchar(20);not null" json:"billing_type"`
	MacAddress  *string       `gorm:"type:varchar(17)" json:"mac_address,omitempty"`
	StaticIP    *string       `gorm:"type:varchar(45)" json:"static_ip,omitempty"`
	Status      Status        `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
