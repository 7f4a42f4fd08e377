package migration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/ispbilling/internal/config"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestMigrationsChecksumStable(t *testing.T) {
	first, err := MigrationsChecksum()
	require.NoError(t, err)
	second, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Len(t, first, 64)
	assert.Equal(t, first, second)
}

func TestParseMigrationVersion(t *testing.T) {
	cases := map[string]struct {
		version uint
		ok      bool
	}{
		"0001_init.up.sql":  {1, true},
		"0012_bills.up.sql": {12, true},
		"init.up.sql":       {0, false},
		"_init.up.sql":      {0, false},
		"v2_init.up.sql":    {0, false},
	}
	for name, want := range cases {
		version, ok := parseMigrationVersion(name)
		assert.Equal(t, want.ok, ok, name)
		assert.Equal(t, want.version, version, name)
	}
}

func TestEveryModelHasCreateTable(t *testing.T) {
	content, err := embeddedMigrations.ReadFile(migrationsDir + "/0001_init.up.sql")
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(model))
		assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS "+stmt.Schema.Table+" (")
	}
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	cfg := config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}}
	require.NoError(t, Run(db, cfg, zap.NewNop()))
	// Idempotent on restart, with the partial index already in place.
	require.NoError(t, Run(db, cfg, zap.NewNop()))
	require.NoError(t, Run(db, cfg, zap.NewNop()))
	assert.True(t, db.Migrator().HasIndex("subscriptions", "ux_subscriptions_open_customer"))

	for _, table := range []string{"subscriptions", "bills", "advance_payments", "refunds", "number_sequences"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestOpenSubscriptionIndex(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(context.Background(), db, zap.NewNop()))
	require.NoError(t, AutoMigrate(context.Background(), db, zap.NewNop()))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := func(id int64, username string, status subscriptiondomain.Status) *subscriptiondomain.Subscription {
		return &subscriptiondomain.Subscription{
			ID:               snowflake.ID(id),
			CustomerID:       1,
			PackageID:        1,
			BillingDay:       5,
			StartDate:        start,
			Status:           status,
			MikrotikUsername: username,
			MikrotikPassword: "secret",
			CreatedAt:        start,
			UpdatedAt:        start,
		}
	}

	require.NoError(t, db.Create(sub(1, "alice", subscriptiondomain.StatusCancelled)).Error)
	require.NoError(t, db.Create(sub(2, "alice-2", subscriptiondomain.StatusActive)).Error)

	err = db.Create(sub(3, "alice-3", subscriptiondomain.StatusSuspended)).Error
	require.Error(t, err)
	assert.True(t, strings.Contains(strings.ToLower(err.Error()), "unique"), err.Error())
}
