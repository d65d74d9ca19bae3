package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vendora/internal/migration"
	"github.com/smallbiznis/vendora/internal/observability"
	"github.com/smallbiznis/vendora/internal/server"
	"github.com/smallbiznis/vendora/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// HTTP surface plus the fleet domain modules it serves
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
