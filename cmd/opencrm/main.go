package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/migration"
	"github.com/opencrmhq/opencrm/internal/observability"
	"github.com/opencrmhq/opencrm/internal/server"
	"github.com/opencrmhq/opencrm/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		server.Module,
		migration.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
