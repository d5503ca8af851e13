package migration

import (
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
	checkoutdomain "github.com/luminapay/lumina/internal/checkout/domain"
	"github.com/luminapay/lumina/internal/config"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite is for local runs and tests; gorm owns the schema there.
			return conn.AutoMigrate(
				&userdomain.User{},
				&catalogdomain.Plan{},
				&catalogdomain.TokenBundle{},
				&catalogdomain.AddOn{},
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceLineItem{},
				&subscriptiondomain.Subscription{},
				&tokendomain.TokenBalance{},
				&tokendomain.TokenTransaction{},
				&tokendomain.TokenBundlePurchase{},
				&checkoutdomain.AddOnSubscription{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
