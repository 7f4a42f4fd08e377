package clock

import (
	"time"

	"github.com/railzwaylabs/ispbilling/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(func(cfg config.Config) (Clock, error) {
		loc, err := time.LoadLocation(cfg.Billing.Timezone)
		if err != nil {
			return nil, err
		}
		return SystemClock{Location: loc}, nil
	}),
)
