package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vantorrr/yauberu-backend/internal/address"
	"github.com/Vantorrr/yauberu-backend/internal/cron"
	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/notifications"
	"github.com/Vantorrr/yauberu-backend/internal/orders"
	"github.com/Vantorrr/yauberu-backend/internal/subscriptions"
	"github.com/Vantorrr/yauberu-backend/internal/users"
	"github.com/Vantorrr/yauberu-backend/pkg/config"
	"github.com/Vantorrr/yauberu-backend/pkg/db"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/Vantorrr/yauberu-backend/pkg/metrics"
	"github.com/Vantorrr/yauberu-backend/pkg/migrate"
	"github.com/Vantorrr/yauberu-backend/pkg/redis"
)

const lockScope = "daily-generation"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	generatorSvc, notifier, err := buildGeneration(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire generation services", err)
		os.Exit(1)
	}

	generationJob, err := cron.NewGenerationJob(cron.GenerationJobParams{
		Logger:    logg,
		Generator: generatorSvc,
		Notifier:  notifier,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create generation job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockScope), cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(generationJob),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildGeneration(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (generator.Service, *notifications.Service, error) {
	gormDB := dbClient.DB()

	ordersRepo := orders.NewRepository(gormDB)
	subscriptionsSvc, err := subscriptions.NewService(subscriptions.NewRepository(gormDB))
	if err != nil {
		return nil, nil, err
	}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:          ledger.NewRepository(gormDB),
		Subscriptions: subscriptionsSvc,
	})
	if err != nil {
		return nil, nil, err
	}

	materializer, err := orders.NewMaterializer(orders.MaterializerParams{
		Logger: logg,
		DB:     dbClient,
		Repo:   ordersRepo,
		Ledger: ledgerSvc,
	})
	if err != nil {
		return nil, nil, err
	}

	usersRepo := users.NewRepository(gormDB)
	notifier, err := notifications.NewService(notifications.ServiceParams{
		Logger:       logg,
		Sender:       notifications.NewTelegramClient(cfg.Telegram),
		Couriers:     usersRepo,
		Addresses:    address.NewRepository(gormDB),
		Users:        usersRepo,
		AdminChatIDs: cfg.Telegram.AdminChatIDs,
	})
	if err != nil {
		return nil, nil, err
	}

	generatorSvc, err := generator.NewService(generator.ServiceParams{
		Logger:        logg,
		Subscriptions: subscriptionsSvc,
		Materializer:  materializer,
		Orders:        ordersRepo,
		Notifier:      notifier,
		Metrics:       metrics.NewGenerationMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, nil, err
	}

	return generatorSvc, notifier, nil
}
