package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Router, error)
	Get(ctx context.Context, id snowflake.ID) (*Router, error)
	List(ctx context.Context, activeOnly bool) ([]*Router, error)
	Credentials(router *Router) (Credentials, error)

	// MarkConnection records the outcome of a connect attempt. Last writer wins.
	MarkConnection(ctx context.Context, id snowflake.ID, online bool, at time.Time) error

	QueueProfile(ctx context.Context, packageID, routerID snowflake.ID) (*QueueProfile, error)
	SaveQueueProfile(ctx context.Context, profile *QueueProfile) error

	RecordSyncLogs(ctx context.Context, logs ...*SyncLog) error
	ListSyncLogs(ctx context.Context, filter SyncLogFilter) ([]*SyncLog, error)
	PurgeSyncLogs(ctx context.Context, before time.Time) (int64, error)
}

type CreateRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	IPAddress string `json:"ip_address" validate:"required,ip|hostname"`
	APIPort   int    `json:"api_port" validate:"omitempty,min=1,max=65535"`
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

var (
	ErrNotFound   = errors.New("router_not_found")
	ErrInactive   = errors.New("router_inactive")
	ErrNameTaken  = errors.New("router_name_taken")
	ErrCredential = errors.New("router_credentials_unreadable")
)
