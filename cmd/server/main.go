package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/madeinfrance/catalog-sync/internal/api"
	"github.com/madeinfrance/catalog-sync/internal/config"
	"github.com/madeinfrance/catalog-sync/internal/logging"
	"github.com/madeinfrance/catalog-sync/internal/metrics"
	"github.com/madeinfrance/catalog-sync/internal/registry"
	"github.com/madeinfrance/catalog-sync/internal/repository/postgres"
	"github.com/madeinfrance/catalog-sync/internal/service"
	"github.com/madeinfrance/catalog-sync/internal/shopify"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting catalog sync server",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("sync_routes_enabled", cfg.Server.AdminKeyHash != ""),
	)

	// Initialize database
	db, err := postgres.NewConnection(context.Background(), cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	reg := metrics.NewRegistry()
	client := shopify.NewClient(cfg.Shopify, logger, shopify.WithMetrics(reg))
	synchronizer := service.NewCatalogSynchronizer(repos, reg, logger)
	importer := service.NewImporter(client, synchronizer, cfg.Import.BrandDelay, reg, nil, logger)
	loadRegistry := func() ([]registry.Entry, error) {
		return registry.LoadFile(cfg.Import.RegistryFile)
	}

	router := api.NewRouter(cfg, api.Dependencies{
		Repos:    repos,
		Importer: importer,
		Registry: loadRegistry,
		Metrics:  reg,
	}, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // POST /v1/sync/:slug answers after the brand import
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Periodic import: once on startup, then every IMPORT_SYNC_INTERVAL
	syncCtx, cancelSync := context.WithCancel(context.Background())
	defer cancelSync()
	if cfg.Import.SyncInterval > 0 {
		go importer.RunLoop(syncCtx, cfg.Import.SyncInterval, loadRegistry)
		logger.Info("Periodic import started", zap.Duration("interval", cfg.Import.SyncInterval))
	}

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelSync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
