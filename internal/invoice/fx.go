package invoice

import (
	"github.com/luminapay/lumina/internal/invoice/repository"
	"github.com/luminapay/lumina/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
