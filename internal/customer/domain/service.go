package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Customer, error)
	Get(ctx context.Context, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, filter ListFilter) ([]*Customer, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status) (*Customer, error)

	CreateZone(ctx context.Context, req CreateZoneRequest) (*Zone, error)
	ListZones(ctx context.Context) ([]*Zone, error)
}

type CreateRequest struct {
	Name        string        `json:"name" validate:"required,max=100"`
	Email       *string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string        `json:"phone" validate:"required,max=32"`
	Address     string        `json:"address" validate:"required"`
	ZoneID      *snowflake.ID `json:"zone_id,omitempty"`
	BillingType BillingType   `json:"billing_type" validate:"omitempty,oneof=personal business free"`
	MacAddress  *string       `json:"mac_address,omitempty" validate:"omitempty,mac"`
	StaticIP    *string       `json:"static_ip,omitempty" validate:"omitempty,ip"`
}

type CreateZoneRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Code        string  `json:"code" validate:"required,max=20"`
	Description *string `json:"description,omitempty"`
}

var (
	ErrNotFound          = errors.New("customer_not_found")
	ErrInvalidRequest    = errors.New("invalid_customer_request")
	ErrZoneNotFound      = errors.New("zone_not_found")
	ErrZoneExists        = errors.New("zone_already_exists")
	ErrInvalidTransition = errors.New("invalid_customer_status_transition")
)
