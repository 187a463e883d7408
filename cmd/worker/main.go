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
	"betabay-platform/pkg/redis"
	"betabay-platform/pkg/task"
	"betabay-platform/services/adminreport"
	"betabay-platform/services/alert"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
			asNotifier,
		),
		alert.Module,
		adminreport.WorkerModule,
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

func asNotifier(svc *alert.Service) adminreport.Notifier {
	return svc
}
