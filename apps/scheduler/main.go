package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
	"github.com/smallbiznis/roomwatt/internal/observability"
	"github.com/smallbiznis/roomwatt/internal/scheduler"
	"github.com/smallbiznis/roomwatt/internal/server"
	"github.com/smallbiznis/roomwatt/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Billing and its dependencies; no server module.
		server.Services,
		scheduler.Module,
	)
	app.Run()
}

// RegisterSnowflake uses a node id distinct from the API so ids never collide.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
