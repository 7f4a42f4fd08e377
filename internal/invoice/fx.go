package invoice

import (
	"github.com/railzwaylabs/ispbilling/internal/invoice/render"
	"github.com/railzwaylabs/ispbilling/internal/invoice/repository"
	"github.com/railzwaylabs/ispbilling/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.New),
)
