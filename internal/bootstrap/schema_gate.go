package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/migration"
	"gorm.io/gorm"
)

var (
	ErrSchemaVersionMismatch  = errors.New("schema version mismatch")
	ErrSchemaChecksumMismatch = errors.New("schema checksum mismatch")
	ErrSchemaIncomplete       = errors.New("schema incomplete")
)

// SchemaGate refuses to serve against a database that was not migrated to the
// schema this binary embeds.
type SchemaGate interface {
	MustBeActive(ctx context.Context) error
}

// versionGate compares the postgres schema_state stamp with the embedded migrations.
type versionGate struct {
	db               *gorm.DB
	expectedVersion  string
	expectedChecksum string
}

// tableGate checks that every model table exists on auto-migrated drivers.
type tableGate struct {
	db *gorm.DB
}

func NewSchemaGate(db *gorm.DB, cfg config.Config) (SchemaGate, error) {
	if db == nil {
		return nil, errors.New("schema gate requires database handle")
	}
	if !strings.EqualFold(cfg.Database.Driver, "postgres") {
		return &tableGate{db: db}, nil
	}

	latest, err := migration.LatestMigrationVersion()
	if err != nil {
		return nil, err
	}
	checksum, err := migration.MigrationsChecksum()
	if err != nil {
		return nil, err
	}
	return &versionGate{
		db:               db,
		expectedVersion:  fmt.Sprintf("%d", latest),
		expectedChecksum: checksum,
	}, nil
}

func (g *versionGate) MustBeActive(ctx context.Context) error {
	state, err := loadSchemaState(ctx, g.db)
	if err != nil {
		return err
	}
	if state.SchemaVersion != g.expectedVersion {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaVersionMismatch, state.SchemaVersion, g.expectedVersion)
	}
	if state.Checksum != nil && *state.Checksum != "" && *state.Checksum != g.expectedChecksum {
		return fmt.Errorf("%w: state=%s expected=%s", ErrSchemaChecksumMismatch, *state.Checksum, g.expectedChecksum)
	}
	return nil
}

func (g *tableGate) MustBeActive(ctx context.Context) error {
	migrator := g.db.WithContext(ctx).Migrator()
	for _, model := range migration.Models() {
		if !migrator.HasTable(model) {
			return fmt.Errorf("%w: missing table for %T", ErrSchemaIncomplete, model)
		}
	}
	return nil
}
