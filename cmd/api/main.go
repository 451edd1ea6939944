package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/broker"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/handlers"
	"fintrack/internal/logger"
	"fintrack/internal/routes"
	"fintrack/internal/scheduler"
	"fintrack/internal/validator"
)

var version = "dev"

// @title           FinTrack API
// @version         1.0
// @description     FinTrack tracks expenses and income, budgets, recurring transactions, savings goals and shared bills.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	validator.Register()

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	checks := map[string]handlers.Check{"database": dbManager.Ping}
	opts := routes.Options{
		DB:                dbManager.DB(),
		Version:           version,
		CacheTTL:          appConfig.CacheTTL,
		AllowedOrigin:     appConfig.AllowedOrigin,
		PipelineAPIKey:    appConfig.PipelineAPIKey,
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		Checks:            checks,
	}

	// Redis is optional
	rdb, err := cache.Connect(appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB)
	if err != nil {
		log.Warnw("Redis unavailable, using in-process cache", "addr", appConfig.RedisAddr, "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		opts.Redis = rdb
		opts.Cache = cache.NewRedisCache(rdb, "fintrack:")
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Broker is optional; without it emailed reports are refused.
	if appConfig.AMQPURL != "" {
		client, err := broker.Dial(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.ReportQueue)
		if err != nil {
			log.Warnw("Broker unavailable, emailed reports disabled", "error", err)
		} else {
			defer client.Close()
			opts.Reports = client
		}
	}

	app := routes.Build(opts)
	defer app.Hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.StartBackground(ctx)

	if appConfig.SchedulerEnabled {
		sched := scheduler.New(scheduler.Config{
			RecurringInterval: appConfig.RecurringInterval,
			SnapshotInterval:  appConfig.SnapshotInterval,
		}, app.Recurring, app.Snapshots, app.Reports)
		go sched.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting FinTrack server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
