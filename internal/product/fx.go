package product

import (
	"github.com/railzwaylabs/ispbilling/internal/product/repository"
	"github.com/railzwaylabs/ispbilling/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
