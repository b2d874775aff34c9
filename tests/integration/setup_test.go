package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"atelier/internal/handlers"
	"atelier/internal/logger"
	"atelier/internal/middleware"
	"atelier/internal/models"
	"atelier/internal/services"
	"atelier/internal/validator"
)

const testAPIKey = "integration-test-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.IngestionBatch{},
		&models.Transaction{},
		&models.Category{},
		&models.Rule{},
		&models.Assignment{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	var writeMu sync.Mutex
	ingestionService := services.NewIngestionService(db, &writeMu)
	classifyService := services.NewClassifyService(db, &writeMu)
	categoryService := services.NewCategoryService(db)
	ruleService := services.NewRuleService(db)
	reportService := services.NewReportService(db)
	snapshotService := services.NewSnapshotService(db, nil)

	ingestHandler := handlers.NewIngestHandler(ingestionService)
	classifyHandler := handlers.NewClassifyHandler(classifyService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	transactionHandler := handlers.NewTransactionHandler(reportService)
	snapshotHandler := handlers.NewSnapshotHandler(snapshotService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(testAPIKey))

	ingest := v1.Group("/ingest")
	ingest.POST("", ingestHandler.Ingest)
	ingest.GET("/batches", ingestHandler.ListBatches)
	ingest.GET("/batches/:id", ingestHandler.GetBatchByID)

	transactions := v1.Group("/transactions")
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)

	classify := v1.Group("/classify")
	classify.POST("/run", classifyHandler.Run)
	classify.POST("/reapply", classifyHandler.Reapply)
	classify.POST("/rules/:id", classifyHandler.ApplyRule)
	classify.POST("/manual", classifyHandler.Manual)

	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.ListCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	rules := v1.Group("/rules")
	rules.POST("", ruleHandler.CreateRule)
	rules.GET("", ruleHandler.ListRules)
	rules.GET("/:id", ruleHandler.GetRuleByID)
	rules.PUT("/:id", ruleHandler.UpdateRule)
	rules.DELETE("/:id", ruleHandler.DeleteRule)
	rules.POST("/from-transaction", ruleHandler.CreateFromTransaction)
	rules.POST("/seed", ruleHandler.ImportSeed)

	reports := v1.Group("/reports")
	reports.GET("/monthly", transactionHandler.MonthlyReport)

	snapshots := v1.Group("/snapshots")
	snapshots.GET("/categories", snapshotHandler.ExportCategories)
	snapshots.GET("/rules", snapshotHandler.ExportRules)
	snapshots.POST("/categories", snapshotHandler.ImportCategories)
	snapshots.POST("/rules", snapshotHandler.ImportRules)

	return &testApp{DB: db, Router: router}
}

// request performs a JSON request against the app with the test API key.
func (app *testApp) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// upload posts content as a multipart "file" field.
func (app *testApp) upload(path, filename, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", filename)
	_, _ = part.Write([]byte(content))
	_ = w.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func TestAuth_RejectsMissingKey(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest("GET", "/api/v1/transactions", nil)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}
}
