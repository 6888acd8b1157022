package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovrpay/ovrpay-backend/api/controllers"
	"github.com/ovrpay/ovrpay-backend/api/routes"
	"github.com/ovrpay/ovrpay-backend/internal/disputes"
	"github.com/ovrpay/ovrpay-backend/internal/gateway"
	"github.com/ovrpay/ovrpay-backend/internal/notifications"
	"github.com/ovrpay/ovrpay-backend/internal/payments"
	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/config"
	"github.com/ovrpay/ovrpay-backend/pkg/db"
	"github.com/ovrpay/ovrpay-backend/pkg/fines"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
	"github.com/ovrpay/ovrpay-backend/pkg/metrics"
	"github.com/ovrpay/ovrpay-backend/pkg/migrate"
	"github.com/ovrpay/ovrpay-backend/pkg/pubsub"
	"github.com/ovrpay/ovrpay-backend/pkg/receipt"
	"github.com/ovrpay/ovrpay-backend/pkg/redis"
	"github.com/ovrpay/ovrpay-backend/pkg/refnum"
)

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

	pingers := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	var eventPublisher notifications.EventPublisher
	if cfg.PubSub.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		eventPublisher = notifications.NewPubSubEventPublisher(pubsubClient.NotificationPublisher())
		pingers["pubsub"] = pubsubClient
	} else {
		logg.Warn(context.Background(), "pubsub project not configured, notification events stay local")
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	violationsRepo := violations.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	dispatcher, err := notifications.NewDispatcher(notificationsRepo, eventPublisher, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	processor, err := buildGatewayAdapter(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway adapter", err)
		os.Exit(1)
	}

	refnums := refnum.NewGenerator()
	calc := fines.NewCalculator()

	violationsService, err := violations.NewService(violationsRepo, refnums, calc, dispatcher)
	if err != nil {
		logg.Error(context.Background(), "failed to create violations service", err)
		os.Exit(1)
	}

	disputesService, err := disputes.NewService(violationsRepo, dispatcher)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		paymentsRepo,
		violationsRepo,
		dbClient,
		processor,
		refnums,
		calc,
		receipt.NewEncoder(),
		dispatcher,
		metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		payments.Config{
			Currency:      cfg.Gateway.Currency,
			ChargeTimeout: cfg.Gateway.ChargeTimeout,
			RefundTimeout: cfg.Gateway.RefundTimeout,
			Logger:        logg,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"gateway":  cfg.Gateway.Provider,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:               cfg,
			Logger:               logg,
			RedisClient:          redisClient,
			Pingers:              pingers,
			ViolationsService:    violationsService,
			PaymentsService:      paymentsService,
			DisputesService:      disputesService,
			NotificationsService: notificationsService,
			MetricsHandler:       promhttp.Handler(),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildGatewayAdapter(ctx context.Context, cfg *config.Config, logg *logger.Logger) (gateway.Adapter, error) {
	if cfg.Gateway.Provider == "square" && cfg.Gateway.AccessToken != "" {
		return gateway.NewSquareAdapter(ctx, cfg.Gateway, logg)
	}
	logg.Warn(ctx, "gateway credentials absent, using sandbox adapter")
	return gateway.NewSandboxAdapter(), nil
}
