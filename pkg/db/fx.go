package db

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(Open),
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		})
	}),
)
