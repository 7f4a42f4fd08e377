// Package mikrotiktest provides a scriptable Gateway for tests that should not
// touch a real router.
package mikrotiktest

import (
	"context"

	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/stretchr/testify/mock"
)

type Gateway struct {
	mock.Mock
}

var _ mikrotik.Gateway = (*Gateway)(nil)

// OK builds a successful result.
func OK(action routerdomain.SyncAction, remoteID string) mikrotik.Result {
	return mikrotik.Result{Success: true, Message: "ok", RemoteID: remoteID, Action: action}
}

// Fail builds a failed result carrying the router's message.
func Fail(action routerdomain.SyncAction, message string) mikrotik.Result {
	return mikrotik.Result{Message: message, Action: action}
}

func (g *Gateway) TestConnection(ctx context.Context, router *routerdomain.Router) mikrotik.Result {
	return g.Called(ctx, router).Get(0).(mikrotik.Result)
}

func (g *Gateway) CreateQueueProfile(ctx context.Context, router *routerdomain.Router, spec mikrotik.QueueSpec) mikrotik.Result {
	return g.Called(ctx, router, spec).Get(0).(mikrotik.Result)
}

func (g *Gateway) UpdateQueueProfile(ctx context.Context, router *routerdomain.Router, spec mikrotik.QueueSpec) mikrotik.Result {
	return g.Called(ctx, router, spec).Get(0).(mikrotik.Result)
}

func (g *Gateway) DeleteQueueProfile(ctx context.Context, router *routerdomain.Router, name string) mikrotik.Result {
	return g.Called(ctx, router, name).Get(0).(mikrotik.Result)
}

func (g *Gateway) UpdatePPPProfile(ctx context.Context, router *routerdomain.Router, spec mikrotik.ProfileSpec) mikrotik.Result {
	return g.Called(ctx, router, spec).Get(0).(mikrotik.Result)
}

func (g *Gateway) CreatePPPProfile(ctx context.Context, router *routerdomain.Router, spec mikrotik.ProfileSpec) mikrotik.Result {
	return g.Called(ctx, router, spec).Get(0).(mikrotik.Result)
}

func (g *Gateway) CreatePPPoEUser(ctx context.Context, router *routerdomain.Router, spec mikrotik.SecretSpec, forceLink bool) mikrotik.Result {
	return g.Called(ctx, router, spec, forceLink).Get(0).(mikrotik.Result)
}

func (g *Gateway) UpdatePPPoEUser(ctx context.Context, router *routerdomain.Router, username string, update mikrotik.SecretUpdate) mikrotik.Result {
	return g.Called(ctx, router, username, update).Get(0).(mikrotik.Result)
}

func (g *Gateway) EnablePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) mikrotik.Result {
	return g.Called(ctx, router, username).Get(0).(mikrotik.Result)
}

func (g *Gateway) DisablePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) mikrotik.Result {
	return g.Called(ctx, router, username).Get(0).(mikrotik.Result)
}

func (g *Gateway) DeletePPPoEUser(ctx context.Context, router *routerdomain.Router, username string) mikrotik.Result {
	return g.Called(ctx, router, username).Get(0).(mikrotik.Result)
}

func (g *Gateway) ActiveConnections(ctx context.Context, router *routerdomain.Router) []mikrotik.ActiveSession {
	sessions, _ := g.Called(ctx, router).Get(0).([]mikrotik.ActiveSession)
	if sessions == nil {
		return []mikrotik.ActiveSession{}
	}
	return sessions
}
