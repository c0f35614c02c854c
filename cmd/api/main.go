package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vantorrr/yauberu-backend/api/routes"
	"github.com/Vantorrr/yauberu-backend/internal/address"
	"github.com/Vantorrr/yauberu-backend/internal/generator"
	"github.com/Vantorrr/yauberu-backend/internal/ledger"
	"github.com/Vantorrr/yauberu-backend/internal/notifications"
	"github.com/Vantorrr/yauberu-backend/internal/orders"
	"github.com/Vantorrr/yauberu-backend/internal/payments"
	"github.com/Vantorrr/yauberu-backend/internal/subscriptions"
	"github.com/Vantorrr/yauberu-backend/internal/users"
	"github.com/Vantorrr/yauberu-backend/pkg/config"
	"github.com/Vantorrr/yauberu-backend/pkg/db"
	"github.com/Vantorrr/yauberu-backend/pkg/logger"
	"github.com/Vantorrr/yauberu-backend/pkg/metrics"
	"github.com/Vantorrr/yauberu-backend/pkg/migrate"
	"github.com/Vantorrr/yauberu-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	services, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			MetricsHandler: promhttp.Handler(),
			Generator:      services.generator,
			Orders:         services.orders,
			Ledger:         services.ledger,
			Subscriptions:  services.subscriptions,
			Payments:       services.payments,
		}),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

type serviceSet struct {
	generator     generator.Service
	orders        orders.Service
	ledger        ledger.Service
	subscriptions subscriptions.Service
	payments      payments.Service
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*serviceSet, error) {
	gormDB := dbClient.DB()

	ordersRepo := orders.NewRepository(gormDB)
	subscriptionsSvc, err := subscriptions.NewService(subscriptions.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:          ledger.NewRepository(gormDB),
		Subscriptions: subscriptionsSvc,
	})
	if err != nil {
		return nil, err
	}

	materializer, err := orders.NewMaterializer(orders.MaterializerParams{
		Logger: logg,
		DB:     dbClient,
		Repo:   ordersRepo,
		Ledger: ledgerSvc,
	})
	if err != nil {
		return nil, err
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
		return nil, err
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Logger:        logg,
		DB:            dbClient,
		Repo:          ordersRepo,
		Ledger:        ledgerSvc,
		Subscriptions: subscriptionsSvc,
		Notifier:      notifier,
	})
	if err != nil {
		return nil, err
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
		return nil, err
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Logger:        logg,
		DB:            dbClient,
		Repo:          payments.NewRepository(gormDB),
		Ledger:        ledgerSvc,
		Subscriptions: subscriptionsSvc,
		Orders:        orders.NewTxWriter(ordersRepo),
		Materializer:  materializer,
		Generator:     generatorSvc,
		Notifier:      notifier,
		Prices:        payments.NewPriceRepository(gormDB),
	})
	if err != nil {
		return nil, err
	}

	return &serviceSet{
		generator:     generatorSvc,
		orders:        ordersSvc,
		ledger:        ledgerSvc,
		subscriptions: subscriptionsSvc,
		payments:      paymentsSvc,
	}, nil
}
