package mikrotik

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"gorm.io/datatypes"
)

// Gateway is the typed boundary to a router's control API. Operations open and
// close their own connection and never return errors: every failure, including
// an unreachable router, comes back as Result{Success: false}.
type Gateway interface {
	TestConnection(ctx context.Context, router *routerdomain.Router) Result
	CreateQueueProfile(ctx context.Context, router *routerdomain.Router, spec QueueSpec) Result
	UpdateQueueProfile(ctx context.Context, router *routerdomain.Router, spec QueueSpec) Result
	DeleteQueueProfile(ctx context.Context, router *routerdomain.Router, name string) Result
	CreatePPPProfile(ctx context.Context, router *routerdomain.Router, spec ProfileSpec) Result
	UpdatePPPProfile(ctx context.Context, router *routerdomain.Router, spec ProfileSpec) Result
	CreatePPPoEUser(ctx context.Context, router *routerdomain.Router, spec SecretSpec, forceLink bool) Result
	UpdatePPPoEUser(ctx context.Context, router *routerdomain.Router, username string, update SecretUpdate) Result
	EnablePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) Result
	DisablePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) Result
	DeletePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) Result
	// ActiveConnections returns an empty slice when the router cannot be reached.
	ActiveConnections(ctx context.Context, router *routerdomain.Router) []ActiveSession
}

type Result struct {
	Success  bool
	Message  string
	RemoteID string
	// Existing is set when a create call linked an entity that was already on the router.
	Existing bool
	Action   routerdomain.SyncAction
	Request  map[string]string
	Response map[string]string
}

// SyncLog turns the result into a sync-log row for the given entity.
func (r Result) SyncLog(routerID snowflake.ID, entityType, entityID string) *routerdomain.SyncLog {
	entry := &routerdomain.SyncLog{
		RouterID:   routerID,
		Action:     r.Action,
		Status:     routerdomain.SyncStatusSuccess,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if len(r.Request) > 0 {
		entry.RequestData = toJSON(redact(r.Request))
	}
	if len(r.Response) > 0 {
		entry.ResponseData = toJSON(r.Response)
	}
	if !r.Success {
		entry.Status = routerdomain.SyncStatusFailed
		msg := r.Message
		entry.ErrorMessage = &msg
	}
	return entry
}

type ActiveSession struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	CallerID string `json:"caller_id"`
	Uptime   string `json:"uptime"`
	Service  string `json:"service"`
}

func redact(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if k == "password" {
			v = "***"
		}
		out[k] = v
	}
	return out
}

func toJSON(m map[string]string) datatypes.JSON {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
