package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/billing"
	"github.com/railzwaylabs/ispbilling/internal/billingcycle"
	"github.com/railzwaylabs/ispbilling/internal/bootstrap"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/customer"
	"github.com/railzwaylabs/ispbilling/internal/invoice"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	"github.com/railzwaylabs/ispbilling/internal/product"
	"github.com/railzwaylabs/ispbilling/internal/redis"
	"github.com/railzwaylabs/ispbilling/internal/router"
	"github.com/railzwaylabs/ispbilling/internal/scheduler"
	"github.com/railzwaylabs/ispbilling/internal/security/vault"
	"github.com/railzwaylabs/ispbilling/internal/sequence"
	"github.com/railzwaylabs/ispbilling/internal/subscription"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
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

		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
