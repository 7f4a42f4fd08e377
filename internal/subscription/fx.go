package subscription

import (
	"github.com/railzwaylabs/ispbilling/internal/subscription/repository"
	"github.com/railzwaylabs/ispbilling/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
