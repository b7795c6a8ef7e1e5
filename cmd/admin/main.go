package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"amulet-controlplane/pkg/authz"
	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/db"
	"amulet-controlplane/pkg/health"
	"amulet-controlplane/pkg/logger"
	"amulet-controlplane/pkg/minio"
	"amulet-controlplane/pkg/redis"
	"amulet-controlplane/pkg/router"
	"amulet-controlplane/pkg/server"
	"amulet-controlplane/pkg/task"
	"amulet-controlplane/services/activity"
	"amulet-controlplane/services/apikey"
	"amulet-controlplane/services/appconfig"
	"amulet-controlplane/services/backup"
	"amulet-controlplane/services/bootstrap"
	"amulet-controlplane/services/console"
	"amulet-controlplane/services/license"
	"amulet-controlplane/services/voice"
)

func main() {
	opts := []fx.Option{
		config.VaultModule,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		minio.Client,
		task.Client,
		task.Server,
		authz.Module,
		health.Module,
		fx.Provide(
			provideTracerProvider,
			provideSnowflakeNode,
		),
		router.Module,
		server.Module,
		bootstrap.Module,
		activity.Module,
		license.Module,
		apikey.Module,
		voice.Module,
		appconfig.Module,
		backup.Module,
		console.Module,
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

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
