package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/migration"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestTableGate(t *testing.T) {
	db := openDB(t)
	gate, err := NewSchemaGate(db, config.Config{Database: config.DatabaseConfig{Driver: "sqlite"}})
	require.NoError(t, err)

	require.ErrorIs(t, gate.MustBeActive(context.Background()), ErrSchemaIncomplete)

	require.NoError(t, migration.AutoMigrate(context.Background(), db, zap.NewNop()))
	require.NoError(t, gate.MustBeActive(context.Background()))
}

func TestVersionGate(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE schema_state (
		id BOOLEAN PRIMARY KEY,
		schema_version VARCHAR(32) NOT NULL,
		checksum VARCHAR(64),
		applied_at DATETIME NOT NULL
	)`).Error)

	latest, err := migration.LatestMigrationVersion()
	require.NoError(t, err)
	checksum, err := migration.MigrationsChecksum()
	require.NoError(t, err)

	gate := &versionGate{db: db, expectedVersion: "1", expectedChecksum: checksum}
	require.Equal(t, uint(1), latest)

	ctx := context.Background()
	require.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaStateNotFound)

	stamp := func(version, sum string) {
		require.NoError(t, db.Exec(`DELETE FROM schema_state`).Error)
		require.NoError(t, db.Exec(`INSERT INTO schema_state (id, schema_version, checksum, applied_at) VALUES (1, ?, ?, ?)`,
			version, sum, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).Error)
	}

	stamp("0", checksum)
	require.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaVersionMismatch)

	stamp("1", "deadbeef")
	require.ErrorIs(t, gate.MustBeActive(ctx), ErrSchemaChecksumMismatch)

	stamp("1", checksum)
	require.NoError(t, gate.MustBeActive(ctx))
}
