package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/fixology/fixology/internal/audit"
	"github.com/fixology/fixology/internal/auth"
	"github.com/fixology/fixology/internal/authorization"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/config"
	"github.com/fixology/fixology/internal/invoice"
	"github.com/fixology/fixology/internal/logger"
	"github.com/fixology/fixology/internal/migration"
	"github.com/fixology/fixology/internal/observability"
	"github.com/fixology/fixology/internal/ratelimit"
	"github.com/fixology/fixology/internal/server"
	"github.com/fixology/fixology/internal/shop"
	"github.com/fixology/fixology/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		authorization.Module,
		audit.Module,
		auth.Module,
		shop.Module,
		invoice.Module,
		ratelimit.Module,

		server.Module,
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
