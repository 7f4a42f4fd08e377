package sequence

import (
	"github.com/railzwaylabs/ispbilling/internal/sequence/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence.repository",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideGenerator),
)
