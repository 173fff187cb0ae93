package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"url2/internal/config"
	"url2/internal/db"
	"url2/internal/jobs"
	"url2/internal/logger"
	"url2/internal/metrics"
	"url2/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()

	// Site file overrides
	site, err := config.LoadYAMLConfig()
	if err != nil {
		log.Fatal("failed to load site file", logger.Error(err))
	}
	site.Apply(cfg)

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", logger.Error(err))
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("failed to run migrations", logger.Error(err))
	}
	log.Info("migrations completed successfully")

	if cfg.IsDev() {
		if err := database.SeedDevCourse(ctx); err != nil {
			log.Warn("failed to seed development course", logger.Error(err))
		}
	}

	metrics.Init(database, log)

	// Link health checks: on demand always, in the background when enabled
	checker := jobs.NewHealthChecker(database, cfg.HealthCheckInterval, cfg.HealthCheckMaxAge, log)
	if cfg.HealthCheckEnabled {
		go checker.Start(ctx)
	}

	srv := server.New(cfg, log)
	if err := srv.RegisterRoutes(ctx, database, site, checker); err != nil {
		log.Fatal("failed to register routes", logger.Error(err))
	}

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("server error", logger.Error(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Fatal("server forced to shutdown", logger.Error(err))
	}
	log.Info("server exited")
}
