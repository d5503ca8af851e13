package observability

import (
	"github.com/luminapay/lumina/internal/config"
	"github.com/luminapay/lumina/internal/observability/logger"
	"github.com/luminapay/lumina/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		provideLoggerConfig,
		logger.New,
		metrics.Billing,
	),
)

func provideLoggerConfig(cfg config.Config) logger.Config {
	debug := cfg.Environment == "development" || cfg.LogLevel == "debug"
	return logger.Config{
		ServiceName:         cfg.AppName,
		Environment:         cfg.Environment,
		Version:             cfg.AppVersion,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}
