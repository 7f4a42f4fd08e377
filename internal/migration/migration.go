package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

const migrateTimeout = 2 * time.Minute

// RunMigrations applies the embedded postgres migrations under an advisory lock
// and records the resulting schema version.
func RunMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, migrateTimeout)
	defer cancel()

	return withAdvisoryLock(ctx, db, log, func(ctx context.Context) error {
		return migrateUp(ctx, db, log)
	})
}

func migrateUp(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	latestVersion, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	before, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	current, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if current != latestVersion {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", current, latestVersion)
	}

	if err := recordSchemaState(ctx, db, strconv.FormatUint(uint64(current), 10), checksum); err != nil {
		return err
	}

	log.Info("migrations applied",
		zap.Uint("from_version", before),
		zap.Uint("to_version", current),
		zap.String("checksum", checksum),
	)
	return nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
