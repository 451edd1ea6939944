package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/broker"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/events"
	"fintrack/internal/idempotence"
	"fintrack/internal/logger"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Named("report-worker")

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.AMQPURL == "" {
		return errors.New("AMQP_URL is required")
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	store, err := idempotence.Open(appConfig.IdempotencyDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := broker.Dial(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.ReportQueue)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer client.Close()

	db := dbManager.DB()
	userService := services.NewUserService(db)
	transactionService := services.NewTransactionService(db, services.NewBudgetService(db), events.Nop())
	analyticsService := services.NewAnalyticsService(db)
	if rdb, err := cache.Connect(appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB); err != nil {
		log.Warnw("Redis unavailable, computing analytics directly", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		analyticsService = services.NewCachedAnalyticsService(analyticsService, cache.NewRedisCache(rdb, "fintrack:"), appConfig.CacheTTL)
	}
	// The worker only renders reports; it never publishes.
	reports := services.NewReportService(userService, transactionService, analyticsService, nil)

	mailer := worker.NewSMTPMailer(worker.SMTPConfig{
		Host:     appConfig.SMTPHost,
		Port:     appConfig.SMTPPort,
		User:     appConfig.SMTPUser,
		Password: appConfig.SMTPPassword,
		From:     appConfig.SMTPFrom,
	})
	reportWorker := worker.NewReportWorker(reports, store, mailer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("Starting report worker", "queue", appConfig.ReportQueue, "smtp", appConfig.SMTPHost)
	if err := client.ConsumeWithRetry(ctx, reportWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume reports: %w", err)
	}
	log.Info("Report worker stopped")
	return nil
}
