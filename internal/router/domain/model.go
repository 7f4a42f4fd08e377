package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Router is a MikroTik device record. IsOnline and LastConnectedAt reflect the
// latest connect attempt made by the gateway and nothing else.
type Router struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Name               string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	IPAddress          string       `gorm:"type:varchar(45);not null" json:"ip_address"`
	APIPort            int          `gorm:"not null;default:8728" json:"api_port"`
	Username           string       `gorm:"type:varchar(100);not null" json:"username"`
	PasswordCiphertext []byte       `gorm:"not null" json:"-"`
	IsOnline           bool         `gorm:"not null;default:false" json:"is_online"`
	LastConnectedAt    *time.Time   `json:"last_connected_at,omitempty"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null" json:"updated_at"`
}

func (Router) TableName() string { return "routers" }

// Address returns host:port for the RouterOS API.
func (r *Router) Address() string {
	return fmt.Sprintf("%s:%d", r.IPAddress, r.APIPort)
}

// Credentials are the decrypted API login of a router.
type Credentials struct {
	Address  string
	Username string
	Password string
}

// QueueProfile tracks whether a package's queue exists on a router.
type QueueProfile struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	PackageID    snowflake.ID `gorm:"not null;uniqueIndex:ux_queue_profile_package_router" json:"package_id"`
	RouterID     snowflake.ID `gorm:"not null;uniqueIndex:ux_queue_profile_package_router" json:"router_id"`
	Name         string       `gorm:"type:varchar(100);not null" json:"name"`
	MikrotikID   *string      `gorm:"type:varchar(50)" json:"mikrotik_id,omitempty"`
	IsSynced     bool         `gorm:"not null;default:false" json:"is_synced"`
	LastSyncedAt *time.Time   `json:"last_synced_at,omitempty"`
	SyncError    *string      `gorm:"type:text" json:"sync_error,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (QueueProfile) TableName() string { return "mikrotik_queue_profiles" }

type SyncAction string

const (
	SyncActionTestConnection SyncAction = "test_connection"
	SyncActionCreateQueue    SyncAction = "create_queue"
	SyncActionUpdateQueue    SyncAction = "update_queue"
	SyncActionDeleteQueue    SyncAction = "delete_queue"
	SyncActionCreateProfile  SyncAction = "create_ppp_profile"
	SyncActionUpdateProfile  SyncAction = "update_ppp_profile"
	SyncActionCreateUser     SyncAction = "create_user"
	SyncActionUpdateUser     SyncAction = "update_user"
	SyncActionEnableUser     SyncAction = "enable_user"
	SyncActionDisableUser    SyncAction = "disable_user"
	SyncActionDeleteUser     SyncAction = "delete_user"
	SyncActionListActive     SyncAction = "list_active"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncLog is an append-only record of one router operation.
type SyncLog struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	RouterID     snowflake.ID   `gorm:"not null;index" json:"router_id"`
	Action       SyncAction     `gorm:"type:varchar(30);not null" json:"action"`
	Status       SyncStatus     `gorm:"type:varchar(10);not null" json:"status"`
	EntityType   string         `gorm:"type:varchar(50);not null" json:"entity_type"`
	EntityID     string         `gorm:"type:varchar(64);not null;index" json:"entity_id"`
	RequestData  datatypes.JSON `json:"request_data,omitempty"`
	ResponseData datatypes.JSON `json:"response_data,omitempty"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
}

func (SyncLog) TableName() string { return "mikrotik_sync_logs" }
