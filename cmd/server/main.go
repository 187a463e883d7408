package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/db"
	"betabay-platform/pkg/logger"
	"betabay-platform/services/adminreport"
	"betabay-platform/services/alert"
	"betabay-platform/services/betaapp"
	"betabay-platform/services/gateway"
	"betabay-platform/services/rewardpool"

	"betabay-platform/pkg/server"
	"betabay-platform/services/abuseguard"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		fx.Provide(
			provideSnowflakeNode,
			asNotifier,
		),
		gateway.Module,
		alert.Module,
		abuseguard.Module,
		rewardpool.Module,
		betaapp.Module,
		adminreport.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func asNotifier(svc *alert.Service) (betaapp.Notifier, adminreport.Notifier) {
	return svc, svc
}
