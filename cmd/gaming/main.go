package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"omnilypro-gaming/internal/server"
	pkgasynq "omnilypro-gaming/pkg/asynq"
	"omnilypro-gaming/pkg/config"
	"omnilypro-gaming/pkg/db"
	"omnilypro-gaming/pkg/gen"
	"omnilypro-gaming/pkg/health"
	"omnilypro-gaming/pkg/logger"
	"omnilypro-gaming/pkg/redis"
	"omnilypro-gaming/services/activity"
	"omnilypro-gaming/services/badge"
	"omnilypro-gaming/services/bootstrap"
	"omnilypro-gaming/services/challenge"
	"omnilypro-gaming/services/discount"
	"omnilypro-gaming/services/ledger"
	"omnilypro-gaming/services/member"
	"omnilypro-gaming/services/notification"
	"omnilypro-gaming/services/scratch"
	"omnilypro-gaming/services/slot"
	"omnilypro-gaming/services/wheel"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		health.Module,
		pkgasynq.Client,
		pkgasynq.Server,
		server.Module,

		member.Module,
		ledger.Module,
		discount.Module,
		discount.TaskModule,
		notification.Module,
		badge.Module,
		badge.TaskModule,
		challenge.Module,
		challenge.TaskModule,
		activity.Module,
		wheel.Module,
		slot.Module,
		scratch.Module,
		bootstrap.Module,

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
