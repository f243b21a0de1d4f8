package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-assistant/cmd/mainconfig"
	"github.com/wolfman30/clinic-assistant/internal/api/router"
	"github.com/wolfman30/clinic-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-assistant/internal/config"
	httpmiddleware "github.com/wolfman30/clinic-assistant/internal/http/middleware"
	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting clinic-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	registry, metricsHandler := setupMetrics()
	deps := bootstrap.AssistantDeps{Registry: registry}
	healthChecks := map[string]router.HealthCheck{}

	if pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		defer pool.Close()
		deps.Pool = pool
		healthChecks["postgres"] = pool.Ping

		auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()
		deps.AuditDB = auditDB
	} else {
		logger.Warn("DATABASE_URL not set; permanent history and doctor directory are in memory")
	}

	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		deps.Redis = redisClient
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Warn("redis not configured; chat sessions are kept in process memory")
	}

	if mainconfig.NeedsAWS(cfg) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		deps.S3 = mainconfig.NewS3Client(awsCfg, cfg)
		deps.SES = mainconfig.NewSESClient(awsCfg)
	}

	built, err := bootstrap.BuildAssistant(ctx, cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build assistant", "error", err)
		os.Exit(1)
	}
	healthChecks["knowledge"] = func(ctx context.Context) error {
		_, err := built.Knowledge.Load(ctx)
		return err
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer limiter.Close()
	}
	if cfg.AuthJWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; all requests are anonymous and admin routes are disabled")
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Assistant:          built.Handler,
		WebChat:            built.WebChat,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthSecret:         cfg.AuthJWTSecret,
		RateLimiter:        limiter,
		HealthChecks:       healthChecks,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Let in-flight emergency alerts finish before the process exits.
	built.Alerter.Wait()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	return pool
}
