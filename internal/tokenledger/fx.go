package tokenledger

import (
	"github.com/luminapay/lumina/internal/tokenledger/repository"
	"github.com/luminapay/lumina/internal/tokenledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tokenledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvidePurchases),
	fx.Provide(service.NewService),
)
