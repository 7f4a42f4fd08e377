package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const DefaultPriority = 8

// Package is an internet plan: a rate limit and price template mirrored on routers
// as a simple queue and a PPP profile named QueueName.
type Package struct {
	ID                     snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name                   string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description            *string         `gorm:"type:text" json:"description,omitempty"`
	BandwidthDownload      int             `gorm:"not null" json:"bandwidth_download"`
	BandwidthUpload        int             `gorm:"not null" json:"bandwidth_upload"`
	Price                  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	ValidityDays           int             `gorm:"not null;default:30" json:"validity_days"`
	QueueName              string          `gorm:"column:mikrotik_queue_name;type:varchar(100);not null" json:"mikrotik_queue_name"`
	BurstLimitDownload     *int            `json:"burst_limit_download,omitempty"`
	BurstLimitUpload       *int            `json:"burst_limit_upload,omitempty"`
	BurstThresholdDownload *int            `json:"burst_threshold_download,omitempty"`
	BurstThresholdUpload   *int            `json:"burst_threshold_upload,omitempty"`
	BurstTime              *int            `json:"burst_time,omitempty"`
	Priority               int             `gorm:"not null;default:8" json:"priority"`
	IsActive               bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt              time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"not null" json:"updated_at"`
}

func (Package) TableName() string { return "packages" }

// RateLimits is the part of a package that routers enforce.
func (p *Package) RateLimits() string {
	return fmt.Sprintf("%d/%d/%s/%s/%s/%s/%s/%d",
		p.BandwidthDownload, p.BandwidthUpload,
		intOrDash(p.BurstLimitDownload), intOrDash(p.BurstLimitUpload),
		intOrDash(p.BurstThresholdDownload), intOrDash(p.BurstThresholdUpload),
		intOrDash(p.BurstTime), p.Priority)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

// HasBurst reports whether every burst parameter is configured.
func (p *Package) HasBurst() bool {
	return p.BurstLimitDownload != nil && p.BurstLimitUpload != nil &&
		p.BurstThresholdDownload != nil && p.BurstThresholdUpload != nil &&
		p.BurstTime != nil
}
