package router

import (
	"github.com/railzwaylabs/ispbilling/internal/router/repository"
	"github.com/railzwaylabs/ispbilling/internal/router/service"
	"go.uber.org/fx"
)

var Module = fx.Module("router.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
