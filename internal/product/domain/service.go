package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Package, error)
	Get(ctx context.Context, id snowflake.ID) (*Package, error)
	List(ctx context.Context, filter ListFilter) ([]*Package, error)
	Update(ctx context.Context, req UpdateRequest) (*Package, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

type CreateRequest struct {
	Name                   string          `json:"name" validate:"required,max=100"`
	Description            *string         `json:"description,omitempty"`
	BandwidthDownload      int             `json:"bandwidth_download" validate:"min=1"`
	BandwidthUpload        int             `json:"bandwidth_upload" validate:"min=1"`
	Price                  decimal.Decimal `json:"price"`
	ValidityDays           int             `json:"validity_days" validate:"omitempty,min=1"`
	QueueName              string          `json:"mikrotik_queue_name" validate:"max=100"`
	BurstLimitDownload     *int            `json:"burst_limit_download,omitempty" validate:"omitempty,min=1"`
	BurstLimitUpload       *int            `json:"burst_limit_upload,omitempty" validate:"omitempty,min=1"`
	BurstThresholdDownload *int            `json:"burst_threshold_download,omitempty" validate:"omitempty,min=1"`
	BurstThresholdUpload   *int            `json:"burst_threshold_upload,omitempty" validate:"omitempty,min=1"`
	BurstTime              *int            `json:"burst_time,omitempty" validate:"omitempty,min=1"`
	Priority               int             `json:"priority" validate:"omitempty,min=1,max=8"`
}

type UpdateRequest struct {
	ID                     snowflake.ID     `json:"id"`
	Name                   *string          `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	BandwidthDownload      *int             `json:"bandwidth_download,omitempty" validate:"omitempty,min=1"`
	BandwidthUpload        *int             `json:"bandwidth_upload,omitempty" validate:"omitempty,min=1"`
	BurstLimitDownload     *int             `json:"burst_limit_download,omitempty" validate:"omitempty,min=1"`
	BurstLimitUpload       *int             `json:"burst_limit_upload,omitempty" validate:"omitempty,min=1"`
	BurstThresholdDownload *int             `json:"burst_threshold_download,omitempty" validate:"omitempty,min=1"`
	BurstThresholdUpload   *int             `json:"burst_threshold_upload,omitempty" validate:"omitempty,min=1"`
	BurstTime              *int             `json:"burst_time,omitempty" validate:"omitempty,min=1"`
	Price                  *decimal.Decimal `json:"price,omitempty"`
	Priority               *int             `json:"priority,omitempty" validate:"omitempty,min=1,max=8"`
	IsActive               *bool            `json:"is_active,omitempty"`
}

var (
	ErrNotFound     = errors.New("package_not_found")
	ErrInactive     = errors.New("package_inactive")
	ErrInvalidPrice = errors.New("invalid_package_price")
	ErrNameTaken    = errors.New("package_name_taken")
	ErrInUse        = errors.New("package_in_use")
)
