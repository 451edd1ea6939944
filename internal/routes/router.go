// Package routes wires services and handlers into the HTTP router.
package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"fintrack/internal/cache"
	"fintrack/internal/events"
	"fintrack/internal/handlers"
	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/notify"
	"fintrack/internal/services"

	_ "fintrack/internal/docs" // swagger docs
)

// Options carries the infrastructure the router is built on.
type Options struct {
	DB      *gorm.DB
	Version string

	// Cache backs the analytics cache. Nil means an in-process LRU.
	Cache    cache.Cache
	CacheTTL time.Duration
	// Redis is optional; it shares rate-limit windows across instances.
	Redis *redis.Client
	// Reports publishes report requests. Nil disables emailed reports.
	Reports services.MessagePublisher

	AllowedOrigin     string
	PipelineAPIKey    string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Checks are reported by /api/health/ready.
	Checks map[string]handlers.Check
}

// App is the assembled application.
type App struct {
	Router      *gin.Engine
	Hub         *notify.Hub
	RateLimiter *middleware.RateLimiter

	Recurring services.RecurringProcessor
	Snapshots services.SnapshotServicer
	Reports   services.ReportServicer

	memory *cache.MemoryCache
}

// Build creates the services, handlers and routes.
func Build(opts Options) *App {
	db := opts.DB

	var memory *cache.MemoryCache
	store := opts.Cache
	if store == nil {
		memory = cache.NewMemoryCache(1000, opts.CacheTTL)
		store = memory
	}

	hub := notify.NewHub(opts.AllowedOrigin)
	publisher := events.Logging(events.Multi{hub, services.NewAnalyticsInvalidator(store)})

	// Services
	userService := services.NewUserService(db)
	categoryService := services.NewCategoryService(db)
	auditService := services.NewAuditService(db)
	budgetService := services.NewBudgetService(db)
	transactionService := services.NewTransactionService(db, budgetService, publisher)
	recurringService := services.NewRecurringService(db)
	recurringProcessor := services.NewRecurringProcessor(db, publisher)
	goalService := services.NewGoalService(db, publisher)
	splitService := services.NewSplitService(db)
	snapshotService := services.NewSnapshotService(db)
	analyticsService := services.NewCachedAnalyticsService(services.NewAnalyticsService(db), store, opts.CacheTTL)
	reportService := services.NewReportService(userService, transactionService, analyticsService, opts.Reports)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService)
	expenseHandler := transactionHandler.ForType(models.TransactionTypeExpense)
	incomeHandler := transactionHandler.ForType(models.TransactionTypeIncome)
	budgetHandler := handlers.NewBudgetHandler(budgetService, auditService)
	recurringHandler := handlers.NewRecurringHandler(recurringService, recurringProcessor, auditService)
	goalHandler := handlers.NewGoalHandler(goalService, auditService)
	splitHandler := handlers.NewSplitHandler(splitService, auditService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	exportHandler := handlers.NewExportHandler(transactionService, reportService, auditService)
	auditHandler := handlers.NewAuditHandler(auditService)
	healthHandler := handlers.NewHealthHandler(opts.Version, opts.Checks)
	notificationHandler := handlers.NewNotificationHandler(hub)

	limiter := middleware.NewRateLimiter(opts.Redis, opts.RateLimitRequests, opts.RateLimitWindow)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(opts.AllowedOrigin))
	router.Use(middleware.ErrorHandler())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", healthHandler.Health)
	router.GET("/api/health/live", healthHandler.Liveness)
	router.GET("/api/health/ready", healthHandler.Readiness)

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.Use(limiter.Middleware())
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// The browser WebSocket API cannot set headers.
	v1.GET("/ws", middleware.QueryTokenAuth(), notificationHandler.Connect)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())
	protected.Use(limiter.Middleware())

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile", authHandler.UpdateProfile)
	protected.GET("/audit-logs", auditHandler.GetAuditLogs)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.POST("/:id/splits", splitHandler.SplitTransaction)
	transactions.GET("/:id/splits", splitHandler.GetTransactionSplits)

	registerTyped(protected.Group("/expenses"), expenseHandler)
	registerTyped(protected.Group("/incomes"), incomeHandler)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	budgets := protected.Group("/budgets")
	budgets.POST("", budgetHandler.CreateBudget)
	budgets.GET("", budgetHandler.GetBudgets)
	budgets.GET("/overview", budgetHandler.GetBudgetOverview)
	budgets.GET("/:id", budgetHandler.GetBudget)
	budgets.PUT("/:id", budgetHandler.UpdateBudget)
	budgets.DELETE("/:id", budgetHandler.DeleteBudget)
	budgets.GET("/:id/progress", budgetHandler.GetBudgetProgress)

	recurring := protected.Group("/recurring-transactions")
	recurring.POST("", recurringHandler.CreateRecurring)
	recurring.GET("", recurringHandler.GetRecurring)
	recurring.POST("/process", recurringHandler.ProcessDue)
	recurring.GET("/:id", recurringHandler.GetRecurringByID)
	recurring.PUT("/:id", recurringHandler.UpdateRecurring)
	recurring.DELETE("/:id", recurringHandler.DeleteRecurring)
	recurring.POST("/:id/pause", recurringHandler.PauseRecurring)
	recurring.POST("/:id/resume", recurringHandler.ResumeRecurring)
	recurring.POST("/:id/skip", recurringHandler.SkipOccurrence)
	recurring.GET("/:id/upcoming", recurringHandler.GetUpcoming)

	goals := protected.Group("/goals")
	goals.POST("", goalHandler.CreateGoal)
	goals.GET("", goalHandler.GetGoals)
	goals.GET("/:id", goalHandler.GetGoal)
	goals.PUT("/:id", goalHandler.UpdateGoal)
	goals.DELETE("/:id", goalHandler.DeleteGoal)
	goals.POST("/:id/deposit", goalHandler.Deposit)
	goals.POST("/:id/withdraw", goalHandler.Withdraw)
	goals.GET("/:id/transactions", goalHandler.GetGoalTransactions)
	goals.GET("/:id/progress", goalHandler.GetGoalProgress)

	groups := protected.Group("/split-groups")
	groups.POST("", splitHandler.CreateGroup)
	groups.GET("", splitHandler.GetGroups)
	groups.GET("/:id", splitHandler.GetGroup)
	groups.PUT("/:id", splitHandler.UpdateGroup)
	groups.DELETE("/:id", splitHandler.DeleteGroup)
	groups.POST("/:id/members", splitHandler.AddMember)
	groups.DELETE("/:id/members/:memberId", splitHandler.RemoveMember)

	splits := protected.Group("/splits")
	splits.GET("", splitHandler.GetSplits)
	splits.GET("/balances", splitHandler.GetBalances)
	splits.POST("/:id/settle", splitHandler.SettleSplit)
	splits.DELETE("/:id", splitHandler.DeleteSplit)

	analytics := protected.Group("/analytics")
	analytics.GET("/summary", analyticsHandler.GetSummary)
	analytics.GET("/categories", analyticsHandler.GetCategoryBreakdown)
	analytics.GET("/trends", analyticsHandler.GetTrends)

	analytics.GET("/snapshots", snapshotHandler.GetSnapshots)

	exports := protected.Group("/export")
	exports.GET("/transactions", exportHandler.ExportTransactions)
	exports.GET("/report", exportHandler.ExportReport)

	protected.POST("/reports/email", exportHandler.EmailReport)

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/recurring/process", recurringHandler.ProcessAll)
	pipeline.POST("/snapshots", snapshotHandler.RecordSnapshots)

	return &App{
		Router:      router,
		Hub:         hub,
		RateLimiter: limiter,
		Recurring:   recurringProcessor,
		Snapshots:   snapshotService,
		Reports:     reportService,
		memory:      memory,
	}
}

func registerTyped(g *gin.RouterGroup, h *handlers.TransactionHandler) {
	g.POST("", h.CreateTransaction)
	g.GET("", h.GetUserTransactions)
	g.GET("/:id", h.GetTransactionByID)
	g.PUT("/:id", h.UpdateTransaction)
	g.DELETE("/:id", h.DeleteTransaction)
}

// StartBackground runs the in-process maintenance loops until ctx is done.
func (a *App) StartBackground(ctx context.Context) {
	a.RateLimiter.StartSweeper(ctx)
	if a.memory != nil {
		a.memory.LRU().StartJanitor(ctx, time.Minute)
	}
}
