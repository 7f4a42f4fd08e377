package migration

import (
	"context"
	"strings"

	"github.com/railzwaylabs/ispbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run migrates the configured database: versioned SQL on postgres, model
// auto-migration everywhere else.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")
	ctx := context.Background()

	if !strings.EqualFold(cfg.Database.Driver, "postgres") {
		return AutoMigrate(ctx, conn, log)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(ctx, sqlDB, log)
}
