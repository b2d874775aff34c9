package services

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"atelier/internal/models"
	"atelier/internal/pagination"
)

// IngestResult reports the outcome of one ingestion call. Duplicates are
// an expected outcome, reported only through RowsSkipped.
type IngestResult struct {
	BatchID      string `json:"batch_id"`
	RowsIngested int    `json:"rows_ingested"`
	RowsSkipped  int    `json:"rows_skipped"`
}

// IngestionServicer defines the contract for statement ingestion.
type IngestionServicer interface {
	Ingest(r io.Reader, source string) (*IngestResult, error)
	GetBatchByID(batchID string) (*models.IngestionBatch, error)
	ListBatches(page pagination.PageRequest) (*pagination.PageResponse[models.IngestionBatch], error)
}

// ManualResult reports a manual classification call: how many transactions
// were (re)assigned and which requested IDs did not exist. Unknown IDs are
// skipped, never fatal to the batch.
type ManualResult struct {
	Updated    int      `json:"updated"`
	MissingIDs []string `json:"missing_ids,omitempty"`
}

// ClassifyServicer defines the contract for the classification engine.
type ClassifyServicer interface {
	ApplyToUnclassified() (int, error)
	ReapplyAll() (int, error)
	ApplyRule(ruleID string) (int, error)
	SetManualCategory(transactionIDs []string, categoryID string) (*ManualResult, error)
}

// CategoryUpdate carries the mutable fields of a category; nil pointers
// leave the stored value untouched.
type CategoryUpdate struct {
	Name            *string
	Description     *string
	Comment         *string
	ThresholdAmount *decimal.Decimal
	IsActive        *bool
}

// CategoryServicer defines the contract for category management.
type CategoryServicer interface {
	CreateCategory(name, description, comment string, threshold *decimal.Decimal) (*models.Category, error)
	ListCategories(activeOnly bool, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(categoryID string) (*models.Category, error)
	UpdateCategory(categoryID string, update CategoryUpdate) (*models.Category, error)
	DeleteCategory(categoryID string) error
}

// RuleInput carries the fields for creating or replacing a rule.
type RuleInput struct {
	CategoryID    string
	Field         models.RuleField
	Strategy      models.MatchStrategy
	Pattern       string
	AmountMin     *decimal.Decimal
	AmountMax     *decimal.Decimal
	Priority      *int
	CaseSensitive bool
	Enabled       *bool
}

// SeedResult reports a seed-list import.
type SeedResult struct {
	CategoriesAdded int `json:"categories_added"`
	RulesAdded      int `json:"rules_added"`
	RulesSkipped    int `json:"rules_skipped"`
}

// RuleServicer defines the contract for rule management.
type RuleServicer interface {
	CreateRule(input RuleInput) (*models.Rule, error)
	ListRules(page pagination.PageRequest) (*pagination.PageResponse[models.Rule], error)
	GetRuleByID(ruleID string) (*models.Rule, error)
	UpdateRule(ruleID string, input RuleInput) (*models.Rule, error)
	DeleteRule(ruleID string) error
	CreateFromTransaction(transactionID, categoryID string, field models.RuleField, strategy models.MatchStrategy) (*models.Rule, error)
	ImportSeed(r io.Reader) (*SeedResult, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	UncategorizedOnly bool
	CategoryID        *string
	Income            *bool
}

// MonthlyCategoryTotal is one cell of the monthly spending report:
// absolute spend per month and category. Unassigned transactions report
// an empty category name.
type MonthlyCategoryTotal struct {
	Month    string          `json:"month"`
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// ReportServicer defines the contract for read-side queries.
type ReportServicer interface {
	ListTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(transactionID string) (*models.Transaction, error)
	MonthlyExpenseByCategory(includeIncome bool, categoryIDs []string) ([]MonthlyCategoryTotal, error)
}

// SnapshotServicer defines the contract for CSV snapshot export/import and
// the optional object-storage sync.
type SnapshotServicer interface {
	ExportCategoriesCSV() ([]byte, error)
	ExportRulesCSV() ([]byte, error)
	ImportCategoriesCSV(r io.Reader) (int, error)
	ImportRulesCSV(r io.Reader) (int, error)
	SyncUp(ctx context.Context) ([]string, error)
	SyncDown(ctx context.Context) ([]string, error)
}
