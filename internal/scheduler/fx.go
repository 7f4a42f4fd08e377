package scheduler

import (
	"context"

	"github.com/railzwaylabs/ispbilling/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(NewLease),
	fx.Provide(New),
)

// Run hooks the cron loop into the fx lifecycle.
func Run(lc fx.Lifecycle, s *Scheduler, cfg config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-s.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
