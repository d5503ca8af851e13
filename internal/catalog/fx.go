package catalog

import (
	"github.com/luminapay/lumina/internal/catalog/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(
		repository.ProvidePlans,
		repository.ProvideTokenBundles,
		repository.ProvideAddOns,
	),
)
