package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/luminapay/lumina/internal/catalog"
	"github.com/luminapay/lumina/internal/checkout"
	"github.com/luminapay/lumina/internal/clock"
	"github.com/luminapay/lumina/internal/config"
	"github.com/luminapay/lumina/internal/invoice"
	"github.com/luminapay/lumina/internal/migration"
	"github.com/luminapay/lumina/internal/observability"
	"github.com/luminapay/lumina/internal/scheduler"
	"github.com/luminapay/lumina/internal/subscription"
	"github.com/luminapay/lumina/internal/tokenledger"
	"github.com/luminapay/lumina/internal/user"
	"github.com/luminapay/lumina/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Billing domains
		user.Module,
		catalog.Module,
		invoice.Module,
		tokenledger.Module,
		subscription.Module,
		checkout.Module,

		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
