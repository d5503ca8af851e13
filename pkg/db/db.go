package db

import (
	"time"

	"github.com/luminapay/lumina/internal/config"
	"github.com/luminapay/lumina/internal/observability/logger"
	"github.com/luminapay/lumina/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Open builds the gorm connection from application config and applies
// connection pool limits.
func Open(cfg config.Config) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialect, &gorm.Config{
		Logger:         logger.NewGormLogger(logger.DefaultGormLoggerConfig()),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)

	return gdb, nil
}

var Module = fx.Module("db",
	fx.Provide(
		Open,
		fx.Annotate(repository.NewGormTransactor, fx.As(new(repository.Transactor))),
	),
)
