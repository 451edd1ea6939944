package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/broker"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/events"
	"fintrack/internal/logger"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Named("scheduler")

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// With Redis the API's analytics cache is shared, so materialized
	// transactions invalidate it from here too.
	var store cache.Cache = cache.NewMemoryCache(100, appConfig.CacheTTL)
	publisher := events.Logging(events.Nop())
	rdb, err := cache.Connect(appConfig.RedisAddr, appConfig.RedisPassword, appConfig.RedisDB)
	if err != nil {
		log.Warnw("Redis unavailable, analytics cache will expire on its own", "error", err)
	} else if rdb != nil {
		defer rdb.Close()
		store = cache.NewRedisCache(rdb, "fintrack:")
		publisher = events.Logging(services.NewAnalyticsInvalidator(store))
	}

	var reportPublisher services.MessagePublisher
	if appConfig.AMQPURL != "" {
		client, err := broker.Dial(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.ReportQueue)
		if err != nil {
			log.Warnw("Broker unavailable, monthly reports disabled", "error", err)
		} else {
			defer client.Close()
			reportPublisher = client
		}
	}

	db := dbManager.DB()
	userService := services.NewUserService(db)
	budgetService := services.NewBudgetService(db)
	transactionService := services.NewTransactionService(db, budgetService, publisher)
	analyticsService := services.NewCachedAnalyticsService(services.NewAnalyticsService(db), store, appConfig.CacheTTL)

	var reports services.ReportServicer
	if reportPublisher != nil {
		reports = services.NewReportService(userService, transactionService, analyticsService, reportPublisher)
	}

	sched := scheduler.New(scheduler.Config{
		RecurringInterval: appConfig.RecurringInterval,
		SnapshotInterval:  appConfig.SnapshotInterval,
	}, services.NewRecurringProcessor(db, publisher), services.NewSnapshotService(db), reports)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Run(ctx)
	return nil
}
