package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/mesa-backend/api/routes"
	"github.com/angelmondragon/mesa-backend/internal/events"
	"github.com/angelmondragon/mesa-backend/internal/inventory"
	"github.com/angelmondragon/mesa-backend/internal/kitchen"
	"github.com/angelmondragon/mesa-backend/internal/menu"
	"github.com/angelmondragon/mesa-backend/internal/notifications"
	"github.com/angelmondragon/mesa-backend/internal/orders"
	"github.com/angelmondragon/mesa-backend/internal/reservation"
	"github.com/angelmondragon/mesa-backend/pkg/config"
	"github.com/angelmondragon/mesa-backend/pkg/db"
	"github.com/angelmondragon/mesa-backend/pkg/logger"
	"github.com/angelmondragon/mesa-backend/pkg/metrics"
	"github.com/angelmondragon/mesa-backend/pkg/migrate"
	"github.com/angelmondragon/mesa-backend/pkg/redis"
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

	registry := prometheus.NewRegistry()
	coreMetrics := metrics.NewCoreMetrics(registry)

	hub, err := events.NewHub(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create event hub", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	inventoryRepo := inventory.NewRepository(gormDB)

	inventorySvc, err := inventory.NewService(inventoryRepo, dbClient)
	requireService(logg, "inventory", err)

	menuSvc, err := menu.NewService(menu.NewRepository(gormDB), inventoryRepo, dbClient)
	requireService(logg, "menu", err)

	reservationSvc, err := reservation.NewService(reservation.NewRepository(gormDB))
	requireService(logg, "reservation", err)

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(gormDB))
	requireService(logg, "notifications", err)

	ordersRepo := orders.NewRepository(gormDB)

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, menuSvc, reservationSvc, hub, coreMetrics, cfg.Retry)
	requireService(logg, "orders", err)

	kitchenSvc, err := kitchen.NewService(ordersRepo, dbClient, reservationSvc, inventorySvc, notificationsSvc, hub, coreMetrics, cfg.Retry)
	requireService(logg, "kitchen", err)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := hub.Run(rootCtx); err != nil && rootCtx.Err() == nil {
			logg.Error(rootCtx, "event hub stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(rootCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Hub:           hub,
			Registry:      registry,
			Inventory:     inventorySvc,
			Menu:          menuSvc,
			Orders:        ordersSvc,
			Kitchen:       kitchenSvc,
			Notifications: notificationsSvc,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
