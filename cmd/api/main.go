package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/merchshop/storefront-backend/api/routes"
	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/internal/checkout"
	"github.com/merchshop/storefront-backend/internal/coupons"
	"github.com/merchshop/storefront-backend/internal/orders"
	"github.com/merchshop/storefront-backend/internal/pricing"
	product "github.com/merchshop/storefront-backend/internal/products"
	"github.com/merchshop/storefront-backend/internal/promocodes"
	"github.com/merchshop/storefront-backend/pkg/breaker"
	"github.com/merchshop/storefront-backend/pkg/config"
	"github.com/merchshop/storefront-backend/pkg/db"
	"github.com/merchshop/storefront-backend/pkg/env"
	"github.com/merchshop/storefront-backend/pkg/logger"
	"github.com/merchshop/storefront-backend/pkg/metrics"
	"github.com/merchshop/storefront-backend/pkg/migrate"
	"github.com/merchshop/storefront-backend/pkg/redis"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	calc, err := pricing.NewCalculatorFromConfig(cfg.Pricing)
	requireResource(ctx, logg, "pricing calculator", err)

	productService, err := product.NewService(product.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "product service", err)

	promoService, err := promocodes.NewService(promocodes.NewRepository(dbClient.DB()), logg)
	requireResource(ctx, logg, "promocode service", err)

	orderService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, promoService, logg)
	requireResource(ctx, logg, "order service", err)

	persistence, err := cart.NewRedisPersistence(redisClient, cfg.Redis.CartTTL, logg)
	requireResource(ctx, logg, "cart persistence", err)

	cartManager, err := cart.NewManager(persistence, logg, cfg.Pricing.NoticeTTL, cart.WithMetrics(checkoutMetrics))
	requireResource(ctx, logg, "cart manager", err)

	couponSession, err := coupons.NewSession(
		redisClient,
		redisClient,
		promoService,
		calc,
		coupons.Config{LockTTL: cfg.Checkout.LockTTL, StateTTL: cfg.Redis.CartTTL},
		breaker.New[coupons.ValidationResult]("coupon-validation", cfg.Breaker, logg),
		checkoutMetrics,
		logg,
	)
	requireResource(ctx, logg, "coupon session", err)

	checkoutService, err := checkout.NewService(
		cartManager,
		couponSession,
		calc,
		orderService,
		redisClient,
		checkout.Config{LockTTL: cfg.Checkout.LockTTL, SubmitTimeout: cfg.Checkout.SubmitTimeout},
		breaker.New[checkout.SubmitResult]("order-submission", cfg.Breaker, logg),
		checkoutMetrics,
		logg,
	)
	requireResource(ctx, logg, "checkout service", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": env.Get("DYNO", "local"),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			productService,
			cartManager,
			checkoutService,
			couponSession,
			orderService,
		),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
