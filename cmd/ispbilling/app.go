package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/billing"
	"github.com/railzwaylabs/ispbilling/internal/billingcycle"
	"github.com/railzwaylabs/ispbilling/internal/bootstrap"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/customer"
	"github.com/railzwaylabs/ispbilling/internal/invoice"
	"github.com/railzwaylabs/ispbilling/internal/migration"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	"github.com/railzwaylabs/ispbilling/internal/product"
	"github.com/railzwaylabs/ispbilling/internal/redis"
	"github.com/railzwaylabs/ispbilling/internal/router"
	"github.com/railzwaylabs/ispbilling/internal/scheduler"
	"github.com/railzwaylabs/ispbilling/internal/security/vault"
	"github.com/railzwaylabs/ispbilling/internal/sequence"
	"github.com/railzwaylabs/ispbilling/internal/server"
	"github.com/railzwaylabs/ispbilling/internal/subscription"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"go.uber.org/fx"
)

const (
	startTimeout = 2 * time.Minute
	stopTimeout  = 30 * time.Second
)

func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
	)
}

// domain wires every service a billing operation can reach behind the schema gate.
func domain() fx.Option {
	return fx.Options(
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
		vault.Module,
		sequence.Module,
		mikrotik.Module,
		customer.Module,
		product.Module,
		router.Module,
		subscription.Module,
		billing.Module,
		invoice.Module,
		billingcycle.Module,
	)
}

func runMigrate(ctx context.Context) error {
	app := fx.New(
		infrastructure(),
		migration.Module,
	)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	return stop(app)
}

func runServe() error {
	app := fx.New(
		infrastructure(),
		redis.Module,
		domain(),
		server.Module,
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
	return app.Err()
}

func runScheduler() error {
	app := fx.New(
		infrastructure(),
		redis.Module,
		domain(),
		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
	return app.Err()
}

func runMonolith() error {
	app := fx.New(
		infrastructure(),
		redis.Module,
		domain(),
		scheduler.Module,
		fx.Invoke(scheduler.Run),
		server.Module,
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
	return app.Err()
}

// runOneShot starts the domain graph without the cron loop or the HTTP
// listener, hands the populated targets to fn and stops the graph again.
func runOneShot(ctx context.Context, fn func(context.Context) error, targets ...any) error {
	app := fx.New(
		infrastructure(),
		redis.Module,
		domain(),
		scheduler.Module,
		fx.NopLogger,
		fx.Populate(targets...),
	)

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)
	if err := stop(app); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func stop(app *fx.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return app.Stop(ctx)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
