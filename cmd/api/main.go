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

	"github.com/angelmondragon/orderdesk-backend/api/routes"
	"github.com/angelmondragon/orderdesk-backend/internal/cart"
	"github.com/angelmondragon/orderdesk-backend/internal/catalog"
	"github.com/angelmondragon/orderdesk-backend/internal/checkout"
	"github.com/angelmondragon/orderdesk-backend/internal/notifications"
	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
	"github.com/angelmondragon/orderdesk-backend/internal/tenants"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/migrate"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
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
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deskMetrics := metrics.NewDeskMetrics(registry)

	permissions := pkgerrors.NewEmitter()
	permissions.On(func(ctx context.Context, perr *pkgerrors.PermissionError) {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"path":      perr.Path,
			"operation": perr.Operation,
		}), "store.permission_denied")
	})

	catalogReader, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}
	tenantService, err := tenants.NewService(tenants.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create tenant service", err)
		os.Exit(1)
	}

	snapshots, err := cart.NewRedisSnapshotStore(redisClient, cfg.Cart.SnapshotTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cart snapshot store", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(snapshots, catalogReader, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	feed, err := orders.NewRedisFeed(redisClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create order feed", err)
		os.Exit(1)
	}
	ordersRepo := orders.NewRepository(dbClient.DB())
	orderStore, err := orders.NewStore(orders.StoreDeps{
		DB:          dbClient,
		Repo:        ordersRepo,
		Outbox:      outbox.NewEmitter(outbox.NewRepository(dbClient.DB()), logg),
		Feed:        feed,
		Permissions: permissions,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create order store", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(ordersRepo, orderStore)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.Deps{
		Carts:                cartService,
		Zones:                catalogReader,
		Tenants:              tenantService,
		Orders:               orderStore,
		DefaultClosedMessage: cfg.Checkout.ClosedMessage,
		Metrics:              deskMetrics,
		Logger:               logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	inboxService, err := notifications.NewInboxService(notifications.NewInboxRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create inbox service", err)
		os.Exit(1)
	}

	printMode := enums.PrintMode(cfg.Printing.Mode)
	var pdfSurface receipts.Surface
	if printMode == enums.PrintModePDF {
		surface, err := receipts.NewChromeSurface(cfg.Printing.SpoolDir, cfg.Printing.ChromePath, cfg.Printing.Timeout, logg)
		if err != nil {
			logg.Error(ctx, "failed to create pdf print surface", err)
			os.Exit(1)
		}
		pdfSurface = surface
	}
	hub, err := notifications.NewHub(notifications.HubDeps{
		Orders:     orderStore,
		Tenants:    tenantService,
		PrintMode:  printMode,
		PDFSurface: pdfSurface,
		Config:     cfg.Notifications,
		Metrics:    deskMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notification hub", err)
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
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   id,
		"print_mode": printMode,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:       dbClient,
			Redis:    redisClient,
			Gatherer: registry,
			Catalog:  catalogReader,
			Tenants:  tenantService,
			Cart:     cartService,
			Checkout: checkoutService,
			Orders:   ordersService,
			Inbox:    inboxService,
			Hub:      hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: the operator event stream stays open
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "failed to close operator sessions", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "failed to shut down api server", err)
	}
}
