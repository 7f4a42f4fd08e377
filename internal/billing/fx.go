package billing

import (
	"github.com/railzwaylabs/ispbilling/internal/billing/repository"
	"github.com/railzwaylabs/ispbilling/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
