package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 8728, cfg.Router.DefaultAPIPort)
	require.Equal(t, 5*time.Second, cfg.Router.ConnectTimeout)
	require.Equal(t, time.Second, cfg.Router.ProvisioningPause)
	require.Equal(t, 7, cfg.Billing.GraceDays)
	require.Equal(t, "10 0 * * *", cfg.Scheduler.BillingCycleSpec)
	require.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:test.db")
	t.Setenv("BILLING_GRACE_DAYS", "3")
	t.Setenv("ROUTER_CONNECT_TIMEOUT", "2s")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "file:test.db", cfg.Database.DSN)
	require.Equal(t, 3, cfg.Billing.GraceDays)
	require.Equal(t, 2*time.Second, cfg.Router.ConnectTimeout)
	require.True(t, cfg.Redis.Enabled)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}
