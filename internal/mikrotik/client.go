package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	pathQueue   = "/queue/simple"
	pathProfile = "/ppp/profile"
	pathSecret  = "/ppp/secret"
	pathActive  = "/ppp/active"
)

// Messages returned when a lookup by name finds nothing.
const (
	MessageQueueNotFound   = "Queue not found"
	MessageProfileNotFound = "Profile not found"
	MessageUserNotFound    = "User not found"
)

// RouterStore is what the gateway needs from the router registry.
type RouterStore interface {
	Credentials(router *routerdomain.Router) (routerdomain.Credentials, error)
	MarkConnection(ctx context.Context, id snowflake.ID, online bool, at time.Time) error
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Routers routerdomain.Service
	Metrics *observability.Metrics `optional:"true"`
}

type Client struct {
	log     *zap.Logger
	store   RouterStore
	dial    Dialer
	timeout time.Duration
	now     func() time.Time
	metrics *observability.Metrics
}

func NewClient(p Params) Gateway {
	timeout := p.Config.Router.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		log:     p.Log.Named("mikrotik.gateway"),
		store:   p.Routers,
		dial:    DialRouterOS,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
		metrics: p.Metrics,
	}
}

func (c *Client) TestConnection(ctx context.Context, router *routerdomain.Router) Result {
	return c.call(ctx, router, routerdomain.SyncActionTestConnection, nil, func(conn Conn) Result {
		reply, err := conn.Run("/system/identity/print")
		if err != nil {
			return failure("read identity", err)
		}
		identity := ""
		if len(reply.Rows) > 0 {
			identity = reply.Rows[0]["name"]
		}
		return Result{
			Success:  true,
			Message:  "connected to " + identity,
			Response: map[string]string{"identity": identity},
		}
	})
}

func (c *Client) CreateQueueProfile(ctx context.Context, router *routerdomain.Router, spec QueueSpec) Result {
	fields := spec.fields()
	return c.call(ctx, router, routerdomain.SyncActionCreateQueue, fields, func(conn Conn) Result {
		return addOrLink(conn, pathQueue, fields)
	})
}

func (c *Client) UpdateQueueProfile(ctx context.Context, router *routerdomain.Router, spec QueueSpec) Result {
	fields := spec.fields()
	return c.call(ctx, router, routerdomain.SyncActionUpdateQueue, fields, func(conn Conn) Result {
		return setByName(conn, pathQueue, spec.Name, without(fields, "name"), MessageQueueNotFound)
	})
}

func (c *Client) DeleteQueueProfile(ctx context.Context, router *routerdomain.Router, name string) Result {
	request := map[string]string{"name": name}
	return c.call(ctx, router, routerdomain.SyncActionDeleteQueue, request, func(conn Conn) Result {
		return removeByName(conn, pathQueue, name, MessageQueueNotFound)
	})
}

// CreatePPPProfile tolerates an existing profile with the same name.
func (c *Client) CreatePPPProfile(ctx context.Context, router *routerdomain.Router, spec ProfileSpec) Result {
	fields := spec.fields()
	return c.call(ctx, router, routerdomain.SyncActionCreateProfile, fields, func(conn Conn) Result {
		return addOrLink(conn, pathProfile, fields)
	})
}

// UpdatePPPProfile rewrites the rate-limit of the profile named spec.Name.
func (c *Client) UpdatePPPProfile(ctx context.Context, router *routerdomain.Router, spec ProfileSpec) Result {
	fields := spec.fields()
	return c.call(ctx, router, routerdomain.SyncActionUpdateProfile, fields, func(conn Conn) Result {
		return setByName(conn, pathProfile, spec.Name, without(fields, "name"), MessageProfileNotFound)
	})
}

// CreatePPPoEUser adds a secret. A name collision fails unless forceLink is set,
// in which case the existing secret's id is returned untouched.
func (c *Client) CreatePPPoEUser(ctx context.Context, router *routerdomain.Router, spec SecretSpec, forceLink bool) Result {
	fields := spec.fields()
	return c.call(ctx, router, routerdomain.SyncActionCreateUser, fields, func(conn Conn) Result {
		reply, err := conn.Run(command(pathSecret+"/add", fields)...)
		if err == nil {
			id := reply.Done["ret"]
			return Result{Success: true, Message: "created", RemoteID: id, Response: map[string]string{".id": id}}
		}
		if !isCollision(err) {
			return failure("create PPPoE user", err)
		}
		if forceLink {
			row, found, lookupErr := findByName(conn, pathSecret, spec.Name)
			if lookupErr == nil && found {
				return Result{Success: true, Message: "linked existing user", RemoteID: row[".id"], Existing: true, Response: row}
			}
			if lookupErr != nil {
				c.log.Warn("lookup for force link failed", zap.String("username", spec.Name), zap.Error(lookupErr))
			}
		}
		return Result{
			Message: fmt.Sprintf("User '%s' already exists on router. Delete it from the router or use a different username.", spec.Name),
		}
	})
}

func (c *Client) UpdatePPPoEUser(ctx context.Context, router *routerdomain.Router, username string, update SecretUpdate) Result {
	fields := update.fields()
	request := with(fields, "name", username)
	return c.call(ctx, router, routerdomain.SyncActionUpdateUser, request, func(conn Conn) Result {
		if len(fields) == 0 {
			return Result{Success: true, Message: "nothing to update"}
		}
		return setByName(conn, pathSecret, username, fields, MessageUserNotFound)
	})
}

func (c *Client) EnablePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) Result {
	return c.setDisabled(ctx, router, routerdomain.SyncActionEnableUser, username, "no")
}

func (c *Client) DisablePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) Result {
	return c.setDisabled(ctx, router, routerdomain.SyncActionDisableUser, username, "yes")
}

func (c *Client) setDisabled(ctx context.Context, router *routerdomain.Router, action routerdomain.SyncAction, username, flag string) Result {
	request := map[string]string{"name": username, "disabled": flag}
	return c.call(ctx, router, action, request, func(conn Conn) Result {
		return setByName(conn, pathSecret, username, map[string]string{"disabled": flag}, MessageUserNotFound)
	})
}

func (c *Client) DeletePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) Result {
	request := map[string]string{"name": username}
	return c.call(ctx, router, routerdomain.SyncActionDeleteUser, request, func(conn Conn) Result {
		return removeByName(conn, pathSecret, username, MessageUserNotFound)
	})
}

func (c *Client) ActiveConnections(ctx context.Context, router *routerdomain.Router) []ActiveSession {
	sessions := []ActiveSession{}
	c.call(ctx, router, routerdomain.SyncActionListActive, nil, func(conn Conn) Result {
		reply, err := conn.Run(pathActive + "/print")
		if err != nil {
			return failure("list active sessions", err)
		}
		for _, row := range reply.Rows {
			sessions = append(sessions, ActiveSession{
				ID:       row[".id"],
				Name:     row["name"],
				Address:  row["address"],
				CallerID: row["caller-id"],
				Uptime:   row["uptime"],
				Service:  row["service"],
			})
		}
		return Result{Success: true}
	})
	return sessions
}

// call connects, runs fn and always disconnects. Panics inside fn are turned
// into failed results so batch callers can move on to the next item.
func (c *Client) call(ctx context.Context, router *routerdomain.Router, action routerdomain.SyncAction, request map[string]string, fn func(conn Conn) Result) (res Result) {
	defer func() {
		res.Action = action
		if res.Request == nil {
			res.Request = request
		}
		c.observe(router, res)
	}()
	defer func() {
		if r := recover(); r != nil {
			res = Result{Message: fmt.Sprintf("router call aborted: %v", r)}
		}
	}()

	conn, err := c.connect(ctx, router)
	if err != nil {
		return Result{Message: "Failed to connect to router: " + err.Error()}
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			c.log.Debug("router disconnect failed", zap.Error(closeErr))
		}
	}()

	return fn(conn)
}

func (c *Client) connect(ctx context.Context, router *routerdomain.Router) (Conn, error) {
	if router == nil {
		return nil, errors.New("router is required")
	}
	creds, err := c.store.Credentials(router)
	if err != nil {
		c.markConnection(ctx, router, false)
		return nil, err
	}
	conn, err := c.dial(ctx, creds, c.timeout)
	c.markConnection(ctx, router, err == nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) markConnection(ctx context.Context, router *routerdomain.Router, online bool) {
	if err := c.store.MarkConnection(ctx, router.ID, online, c.now()); err != nil {
		c.log.Warn("failed to record router connection state",
			zap.String("router_id", router.ID.String()),
			zap.Error(err),
		)
	}
}

func (c *Client) observe(router *routerdomain.Router, res Result) {
	status := string(routerdomain.SyncStatusSuccess)
	if !res.Success {
		status = string(routerdomain.SyncStatusFailed)
		fields := []zap.Field{zap.String("action", string(res.Action)), zap.String("message", res.Message)}
		if router != nil {
			fields = append(fields, zap.String("router_id", router.ID.String()), zap.String("router", router.Name))
		}
		c.log.Warn("router operation failed", fields...)
	}
	if c.metrics != nil {
		c.metrics.RouterCalls.WithLabelValues(string(res.Action), status).Inc()
	}
}

func addOrLink(conn Conn, path string, fields map[string]string) Result {
	reply, err := conn.Run(command(path+"/add", fields)...)
	if err == nil {
		id := reply.Done["ret"]
		return Result{Success: true, Message: "created", RemoteID: id, Response: map[string]string{".id": id}}
	}
	if !isCollision(err) {
		return failure("create "+path, err)
	}
	row, found, lookupErr := findByName(conn, path, fields["name"])
	if lookupErr != nil {
		return failure("find existing "+path, lookupErr)
	}
	if !found {
		return failure("create "+path, err)
	}
	return Result{Success: true, Message: "already exists", RemoteID: row[".id"], Existing: true, Response: row}
}

func setByName(conn Conn, path, name string, attrs map[string]string, notFound string) Result {
	row, found, err := findByName(conn, path, name)
	if err != nil {
		return failure("find "+path, err)
	}
	if !found {
		return Result{Message: notFound}
	}
	if _, err := conn.Run(command(path+"/set", with(attrs, ".id", row[".id"]))...); err != nil {
		return failure("update "+path, err)
	}
	return Result{Success: true, Message: "updated", RemoteID: row[".id"]}
}

func removeByName(conn Conn, path, name, notFound string) Result {
	row, found, err := findByName(conn, path, name)
	if err != nil {
		return failure("find "+path, err)
	}
	if !found {
		return Result{Message: notFound}
	}
	if _, err := conn.Run(path+"/remove", "=.id="+row[".id"]); err != nil {
		return failure("delete "+path, err)
	}
	return Result{Success: true, Message: "deleted", RemoteID: row[".id"]}
}

func findByName(conn Conn, path, name string) (map[string]string, bool, error) {
	reply, err := conn.Run(path+"/print", "?name="+name)
	if err != nil {
		return nil, false, err
	}
	if len(reply.Rows) == 0 {
		return nil, false, nil
	}
	return reply.Rows[0], true, nil
}

func failure(op string, err error) Result {
	return Result{Message: fmt.Sprintf("%s: %s", op, err.Error())}
}

func with(m map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

func without(m map[string]string, key string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k != key {
			out[k] = v
		}
	}
	return out
}
