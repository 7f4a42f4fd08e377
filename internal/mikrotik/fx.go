package mikrotik

import "go.uber.org/fx"

var Module = fx.Module("mikrotik.gateway",
	fx.Provide(NewClient),
)
