package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Subscription, error)
	Get(ctx context.Context, id snowflake.ID) (*Subscription, error)
	List(ctx context.Context, filter ListFilter) ([]*Subscription, error)
	History(ctx context.Context, id snowflake.ID) ([]*History, error)

	Suspend(ctx context.Context, req SuspendRequest) (*ActionResult, error)
	Activate(ctx context.Context, req ActivateRequest) (*ActionResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*ActionResult, error)
	ChangePackage(ctx context.Context, req ChangePackageRequest) (*Subscription, error)
	ChangeRouter(ctx context.Context, req ChangeRouterRequest) (*Subscription, error)
	SyncToRouter(ctx context.Context, id snowflake.ID) (*ActionResult, error)
	// SyncPackageToRouter pushes a package's queue and PPP profile to one router,
	// updating entries the router already carries.
	SyncPackageToRouter(ctx context.Context, req SyncPackageRequest) (*PackageSyncResult, error)
	// RemovePackageFromRouter deletes the package's queue from a router no open
	// subscription on that router still uses.
	RemovePackageFromRouter(ctx context.Context, req SyncPackageRequest) error

	// ReactivateAfterPayment activates a suspended, router-bound subscription.
	// It reports false when there was nothing to do.
	ReactivateAfterPayment(ctx context.Context, id snowflake.ID) (bool, error)
	SuspendForNonPayment(ctx context.Context, id snowflake.ID, reason string) (*ActionResult, error)

	ListBillable(ctx context.Context, asOf time.Time) ([]*Subscription, error)
	ListPastBillingDay(ctx context.Context, asOf time.Time) ([]*Subscription, error)
}

type CreateRequest struct {
	CustomerID        snowflake.ID    `json:"customer_id" validate:"required"`
	PackageID         snowflake.ID    `json:"package_id" validate:"required"`
	RouterID          *snowflake.ID   `json:"router_id,omitempty"`
	BillingDay        int             `json:"billing_day" validate:"min=1,max=31"`
	BillingStartMonth *time.Time      `json:"billing_start_month,omitempty"`
	StartDate         *time.Time      `json:"start_date,omitempty"`
	Username          string          `json:"mikrotik_username" validate:"omitempty,max=100"`
	Password          string          `json:"mikrotik_password" validate:"omitempty,max=100"`
	StaticIP          *string         `json:"static_ip,omitempty" validate:"omitempty,ip"`
	ConnectionFee     decimal.Decimal `json:"connection_fee"`
	ReconnectionFee   decimal.Decimal `json:"reconnection_fee"`
	Notes             *string         `json:"notes,omitempty"`
	// ForceLink adopts a PPPoE secret that already exists on the router under the same name.
	ForceLink bool   `json:"force_link"`
	Actor     string `json:"-"`
}

type SuspendRequest struct {
	ID     snowflake.ID `json:"id"`
	Reason string       `json:"reason"`
	Actor  string       `json:"-"`
}

type ActivateRequest struct {
	ID    snowflake.ID `json:"id"`
	Notes string       `json:"notes"`
	Actor string       `json:"-"`
}

type CancelRequest struct {
	ID     snowflake.ID `json:"id"`
	Reason string       `json:"reason"`
	// Purge removes the PPPoE secret instead of disabling it.
	Purge bool   `json:"purge"`
	Actor string `json:"-"`
}

type ChangePackageRequest struct {
	ID        snowflake.ID `json:"id"`
	PackageID snowflake.ID `json:"package_id" validate:"required"`
	Actor     string       `json:"-"`
}

type ChangeRouterRequest struct {
	ID       snowflake.ID  `json:"id"`
	RouterID *snowflake.ID `json:"router_id"`
	Actor    string        `json:"-"`
}

type SyncPackageRequest struct {
	PackageID snowflake.ID `json:"package_id" validate:"required"`
	RouterID  snowflake.ID `json:"router_id" validate:"required"`
}

type PackageSyncResult struct {
	QueueProfile   *routerdomain.QueueProfile `json:"queue_profile"`
	ProfileMessage string                     `json:"profile_message,omitempty"`
}

// ActionResult pairs the local outcome with what happened on the router.
type ActionResult struct {
	Subscription    *Subscription `json:"subscription"`
	RouterAttempted bool          `json:"router_attempted"`
	RouterSuccess   bool          `json:"router_success"`
	RouterMessage   string        `json:"router_message,omitempty"`
}

// RouterFailed reports a router call that was attempted and did not succeed.
func (r *ActionResult) RouterFailed() bool {
	return r != nil && r.RouterAttempted && !r.RouterSuccess
}

var (
	ErrNotFound                 = errors.New("subscription_not_found")
	ErrActiveSubscriptionExists = errors.New("active_subscription_exists")
	ErrUsernameTaken            = errors.New("mikrotik_username_taken")
	ErrInvalidTransition        = errors.New("invalid_subscription_transition")
	ErrAlreadySuspended         = errors.New("subscription_already_suspended")
	ErrAlreadyActive            = errors.New("subscription_already_active")
	ErrNoRouter                 = errors.New("subscription_has_no_router")
	ErrProvisioningFailed       = errors.New("router_provisioning_failed")
	ErrPackageInUseOnRouter     = errors.New("package_in_use_on_router")
)

// ProvisioningError carries the router's own message so operators can tell a
// name collision from a timeout without opening the sync log.
type ProvisioningError struct {
	Step    string
	Message string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("router provisioning failed at %s: %s", e.Step, e.Message)
}

func (e *ProvisioningError) Unwrap() error { return ErrProvisioningFailed }
