package checkout

import (
	"github.com/luminapay/lumina/internal/checkout/repository"
	"github.com/luminapay/lumina/internal/checkout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(repository.ProvideAddOnSubscriptions),
	fx.Provide(service.NewService),
)
