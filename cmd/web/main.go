package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/Behnamfe76/ticket-portal/internal/api/http"
	"github.com/Behnamfe76/ticket-portal/internal/api/http/handlers"
	"github.com/Behnamfe76/ticket-portal/internal/api/http/visitor"
	"github.com/Behnamfe76/ticket-portal/internal/apiclient"
	"github.com/Behnamfe76/ticket-portal/internal/config"
	"github.com/Behnamfe76/ticket-portal/internal/events"
	"github.com/Behnamfe76/ticket-portal/internal/observability"
	"github.com/Behnamfe76/ticket-portal/internal/persistence"
	"github.com/Behnamfe76/ticket-portal/internal/readiness"
	"github.com/Behnamfe76/ticket-portal/internal/tokenstore"
	"github.com/Behnamfe76/ticket-portal/internal/worker"
)

func main() {
	cfg, err := config.Load(config.DriverMemory)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := tokenstore.Factory{Driver: cfg.TokenStore.Driver, Dir: cfg.TokenStore.Dir}
	deps := map[string]handlers.Pinger{}

	switch cfg.TokenStore.Driver {
	case config.DriverPostgres:
		db, err := persistence.OpenCredentialDB(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to open credential database", zap.Error(err))
		}
		defer db.Close()
		stores.PG = db.Pool
		deps["postgres"] = db
	case config.DriverRedis:
		cache, err := persistence.OpenCredentialCache(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("credential cache unreachable; visitors start signed out until it answers", zap.Error(err))
		}
		defer cache.Close()
		stores.Redis = cache.Client
		deps["redis"] = cache
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)
	metrics := observability.NewMetrics()

	prober := readiness.NewProber(apiclient.New(cfg.API.BaseURL, apiclient.WithLogger(logger)), cfg.API.BackendOrigin, cfg.Readiness, readiness.Options{
		Events:  dispatcher,
		Metrics: metrics,
		Logger:  logger,
	})
	prober.Start()
	defer prober.Stop()

	registry := visitor.NewRegistry(httptransport.NewVisitorFactory(httptransport.VisitorDeps{
		Config:  cfg,
		Stores:  stores,
		Events:  dispatcher,
		Metrics: metrics,
		Logger:  logger,
	}), cfg.Visitors.IdleTimeout, logger).WithLimit(cfg.Visitors.MaxVisitors)
	defer registry.Close()
	worker.StartVisitorSweeper(ctx, registry, cfg.Visitors.IdleTimeout/2)

	routes := httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, prober, deps),
		Auth:          handlers.NewAuthHandler(prober, httptransport.LandingPath),
		Session:       handlers.NewSessionHandler(httptransport.LoginPath),
		App:           handlers.NewAppHandler(),
		Visitors:      registry,
		Visitor:       cfg.Visitors,
		SecureCookies: !cfg.App.IsDevelopment(),
		Guard: httptransport.GuardConfig{
			LoginPath:   httptransport.LoginPath,
			Landing:     cfg.Exchange.DefaultDestination,
			WaitTimeout: cfg.Visitors.WaitTimeout,
		},
	}
	if cfg.App.IsDevelopment() {
		routes.Debug = handlers.NewDebugHandler(metrics, registry.Len)
	}

	app := httptransport.NewApp(cfg, routes, logger, metrics)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
