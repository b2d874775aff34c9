package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	"atelier/internal/config"
	"atelier/internal/database"
	"atelier/internal/handlers"
	"atelier/internal/logger"
	"atelier/internal/middleware"
	"atelier/internal/services"
	"atelier/internal/snapshot"
	"atelier/internal/validator"
)

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

	// Initialize database configuration
	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Snapshot sync is optional: without a bucket the endpoints report
	// SNAPSHOT_NOT_CONFIGURED but local export/import still works.
	var store snapshot.ObjectStore
	if appConfig.SnapshotBucket != "" {
		gcsStore, err := snapshot.NewGCSStore(context.Background(), appConfig.SnapshotBucket, appConfig.SnapshotPrefix)
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		defer gcsStore.Close()
		store = gcsStore
		log.Infow("snapshot sync enabled", "bucket", appConfig.SnapshotBucket)
	}

	// Initialize services. Ingestion and classification share a single
	// write lock so their read-decide-write sequences never interleave.
	db := dbManager.DB()
	var writeMu sync.Mutex
	ingestionService := services.NewIngestionService(db, &writeMu)
	classifyService := services.NewClassifyService(db, &writeMu)
	categoryService := services.NewCategoryService(db)
	ruleService := services.NewRuleService(db)
	reportService := services.NewReportService(db)
	snapshotService := services.NewSnapshotService(db, store)

	// Initialize handlers
	ingestHandler := handlers.NewIngestHandler(ingestionService)
	classifyHandler := handlers.NewClassifyHandler(classifyService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	transactionHandler := handlers.NewTransactionHandler(reportService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService)

	// Initialize Gin router
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group, everything behind the API key
	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(appConfig.APIKey))

	// Ingestion routes
	ingest := v1.Group("/ingest")
	ingest.POST("", ingestHandler.Ingest)
	ingest.GET("/batches", ingestHandler.ListBatches)
	ingest.GET("/batches/:id", ingestHandler.GetBatchByID)

	// Transaction routes
	transactions := v1.Group("/transactions")
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)

	// Classification routes
	classify := v1.Group("/classify")
	classify.POST("/run", classifyHandler.Run)
	classify.POST("/reapply", classifyHandler.Reapply)
	classify.POST("/rules/:id", classifyHandler.ApplyRule)
	classify.POST("/manual", classifyHandler.Manual)

	// Category routes
	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.ListCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	// Rule routes
	rules := v1.Group("/rules")
	rules.POST("", ruleHandler.CreateRule)
	rules.GET("", ruleHandler.ListRules)
	rules.GET("/:id", ruleHandler.GetRuleByID)
	rules.PUT("/:id", ruleHandler.UpdateRule)
	rules.DELETE("/:id", ruleHandler.DeleteRule)
	rules.POST("/from-transaction", ruleHandler.CreateFromTransaction)
	rules.POST("/seed", ruleHandler.ImportSeed)

	// Report routes
	reports := v1.Group("/reports")
	reports.GET("/monthly", transactionHandler.MonthlyReport)

	// Snapshot routes
	snapshots := v1.Group("/snapshots")
	snapshots.GET("/categories", snapshotHandler.ExportCategories)
	snapshots.GET("/rules", snapshotHandler.ExportRules)
	snapshots.POST("/categories", snapshotHandler.ImportCategories)
	snapshots.POST("/rules", snapshotHandler.ImportRules)
	snapshots.POST("/sync/up", snapshotHandler.SyncUp)
	snapshots.POST("/sync/down", snapshotHandler.SyncDown)

	log.Infof("Starting Atelier backend server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
