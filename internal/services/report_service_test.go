package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"atelier/internal/models"
	"atelier/internal/pagination"
	"atelier/internal/testutil"
)

func TestListTransactions(t *testing.T) {
	t.Run("uncategorized_filter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewReportService(db)

		cat := testutil.CreateTestCategory(t, db)
		classified := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		unclassified := testutil.CreateTestExpense(t, db, "Bakery Schmidt", -3.20)
		if err := db.Create(&models.Assignment{
			TransactionID: classified.ID,
			CategoryID:    cat.ID,
			Source:        models.SourceManual,
		}).Error; err != nil {
			t.Fatalf("failed to create assignment: %v", err)
		}

		page, err := svc.ListTransactions(TransactionFilter{UncategorizedOnly: true}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 || page.Data[0].ID != unclassified.ID {
			t.Errorf("expected only the unclassified transaction, got %d items", page.TotalItems)
		}
	})

	t.Run("category_filter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewReportService(db)

		groceries := testutil.CreateTestCategory(t, db)
		dining := testutil.CreateTestCategory(t, db)
		a := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		b := testutil.CreateTestExpense(t, db, "Restaurant", -30.00)
		for _, pair := range []struct {
			txID, catID string
		}{{a.ID, groceries.ID}, {b.ID, dining.ID}} {
			if err := db.Create(&models.Assignment{
				TransactionID: pair.txID,
				CategoryID:    pair.catID,
				Source:        models.SourceManual,
			}).Error; err != nil {
				t.Fatalf("failed to create assignment: %v", err)
			}
		}

		page, err := svc.ListTransactions(TransactionFilter{CategoryID: &groceries.ID}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 || page.Data[0].ID != a.ID {
			t.Errorf("expected only the groceries transaction, got %d items", page.TotalItems)
		}
		if page.Data[0].Assignment == nil || page.Data[0].Assignment.Category == nil {
			t.Error("expected assignment and category preloaded")
		}
	})

	t.Run("income_filter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewReportService(db)

		testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		salary := testutil.CreateTestTransaction(t, db, "ACME GmbH", "Salary", 2500.00)

		income := true
		page, err := svc.ListTransactions(TransactionFilter{Income: &income}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 || page.Data[0].ID != salary.ID {
			t.Errorf("expected only the income transaction, got %d items", page.TotalItems)
		}
	})
}

func TestGetTransactionByID(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewReportService(db)

		_, err := svc.GetTransactionByID("00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestMonthlyExpenseByCategory(t *testing.T) {
	t.Run("groups_and_sums_absolute", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewReportService(db)

		groceries := testutil.CreateTestCategoryWithName(t, db, "Groceries")
		a := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		b := testutil.CreateTestExpense(t, db, "Edeka", -7.50)
		testutil.CreateTestExpense(t, db, "Unknown Vendor", -5.00)
		testutil.CreateTestTransaction(t, db, "ACME GmbH", "Salary", 2500.00)

		for _, id := range []string{a.ID, b.ID} {
			if err := db.Create(&models.Assignment{
				TransactionID: id,
				CategoryID:    groceries.ID,
				Source:        models.SourceManual,
			}).Error; err != nil {
				t.Fatalf("failed to create assignment: %v", err)
			}
		}

		totals, err := svc.MonthlyExpenseByCategory(false, nil)
		testutil.AssertNoError(t, err)

		// Fixtures all land in 2024-01: one Groceries bucket plus one
		// unassigned bucket. Income stays out.
		if len(totals) != 2 {
			t.Fatalf("expected 2 buckets, got %d: %+v", len(totals), totals)
		}
		if totals[0].Category != "" || !totals[0].Total.Equal(decimal.NewFromFloat(5.00)) {
			t.Errorf("expected unassigned bucket of 5.00 first, got %+v", totals[0])
		}
		if totals[1].Category != "Groceries" || !totals[1].Total.Equal(decimal.NewFromFloat(20.00)) {
			t.Errorf("expected Groceries bucket of 20.00, got %+v", totals[1])
		}
		if totals[0].Month != "2024-01" {
			t.Errorf("expected month 2024-01, got %s", totals[0].Month)
		}
	})

	t.Run("category_filter", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewReportService(db)

		groceries := testutil.CreateTestCategoryWithName(t, db, "Groceries")
		dining := testutil.CreateTestCategoryWithName(t, db, "Dining")
		a := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		b := testutil.CreateTestExpense(t, db, "Restaurant", -30.00)
		for _, pair := range []struct {
			txID, catID string
		}{{a.ID, groceries.ID}, {b.ID, dining.ID}} {
			if err := db.Create(&models.Assignment{
				TransactionID: pair.txID,
				CategoryID:    pair.catID,
				Source:        models.SourceManual,
			}).Error; err != nil {
				t.Fatalf("failed to create assignment: %v", err)
			}
		}

		totals, err := svc.MonthlyExpenseByCategory(false, []string{dining.ID})
		testutil.AssertNoError(t, err)
		if len(totals) != 1 || totals[0].Category != "Dining" {
			t.Fatalf("expected only the Dining bucket, got %+v", totals)
		}
		if !totals[0].Total.Equal(decimal.NewFromFloat(30.00)) {
			t.Errorf("expected total 30.00, got %s", totals[0].Total)
		}
	})
}
