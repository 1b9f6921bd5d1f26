package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
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
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	deps, err := buildDeps(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

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
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Deps, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline := metrics.NewPipelineMetrics(registry)

	gormDB := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(gormDB), logg)

	catalog, err := product.NewService(product.NewRepository(gormDB), cfg.Store)
	if err != nil {
		return routes.Deps{}, err
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(gormDB), logg, time.Now)
	if err != nil {
		return routes.Deps{}, err
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gormDB), dbClient, events, logg, pipeline)
	if err != nil {
		return routes.Deps{}, err
	}
	orderRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(orderRepo, dbClient, inventorySvc, couponSvc, events, logg, pipeline)
	if err != nil {
		return routes.Deps{}, err
	}

	cartRepo := cart.NewRepository(gormDB)
	cartSvc, err := cart.NewService(cartRepo, dbClient, catalog, cart.Options{
		MaxQuantityPerItem: cfg.Cart.MaxQuantityPerItem,
		Events:             events,
		Logger:             logg,
		Metrics:            pipeline,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Tx:           dbClient,
		Carts:        cartRepo,
		CartService:  cartSvc,
		Orders:       orderRepo,
		Catalog:      catalog,
		Coupons:      couponSvc,
		Inventory:    inventorySvc,
		Outbox:       events,
		Logger:       logg,
		Metrics:      pipeline,
		NumberPrefix: cfg.Orders.NumberPrefix,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	webhookSvc, err := paymentwebhook.NewService(ordersSvc, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	replay, err := idempotency.NewManager(redisClient, cfg.Webhooks.ReplayTTL)
	if err != nil {
		return routes.Deps{}, err
	}
	guard, err := paymentwebhook.NewIdempotencyGuard(replay)
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		DB:             dbClient,
		Redis:          redisClient,
		Cart:           cartSvc,
		Checkout:       checkoutSvc,
		Orders:         ordersSvc,
		Inventory:      inventorySvc,
		PaymentWebhook: webhookSvc,
		WebhookGuard:   guard,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}
