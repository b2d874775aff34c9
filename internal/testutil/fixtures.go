package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"atelier/internal/canon"
	"atelier/internal/fingerprint"
	"atelier/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestCategory creates an active category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB) *models.Category {
	t.Helper()
	return CreateTestCategoryWithName(t, db, fmt.Sprintf("Test Category %d", nextID()))
}

// CreateTestCategoryWithName creates an active category with the given name.
func CreateTestCategoryWithName(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name, IsActive: true}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestExpense creates an expense transaction (negative amount) with
// a valid fingerprint for the given counterparty.
func CreateTestExpense(t *testing.T, db *gorm.DB, counterparty string, amount float64) *models.Transaction {
	t.Helper()
	return CreateTestTransaction(t, db, counterparty, "", amount)
}

// CreateTestTransaction creates a transaction with the given fields and a
// fingerprint derived from them. Timestamps are spread a second apart so
// fingerprints stay unique even for identical text.
func CreateTestTransaction(t *testing.T, db *gorm.DB, counterparty, reference string, amount float64) *models.Transaction {
	t.Helper()

	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Add(time.Duration(nextID()) * time.Second)
	amt := decimal.NewFromFloat(amount)
	tx := &models.Transaction{
		Fingerprint:  fingerprint.Compute(at, amt, canon.Normalize(counterparty), canon.Normalize(reference)),
		CompletedAt:  at,
		Counterparty: counterparty,
		Reference:    reference,
		Amount:       amt,
		IsIncome:     amt.IsPositive(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestRule creates an enabled rule with default priority.
func CreateTestRule(t *testing.T, db *gorm.DB, categoryID string, field models.RuleField, strategy models.MatchStrategy, pattern string) *models.Rule {
	t.Helper()

	rule := &models.Rule{
		CategoryID: categoryID,
		Field:      field,
		Strategy:   strategy,
		Pattern:    pattern,
		Priority:   models.DefaultRulePriority,
		Enabled:    true,
	}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("failed to create test rule: %v", err)
	}
	return rule
}
