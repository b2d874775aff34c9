package services

import (
	"sync"
	"testing"

	"atelier/internal/models"
	"atelier/internal/testutil"

	"gorm.io/gorm"
)

func newClassifyService(db *gorm.DB) ClassifyServicer {
	var mu sync.Mutex
	return NewClassifyService(db, &mu)
}

func loadAssignment(t *testing.T, db *gorm.DB, transactionID string) *models.Assignment {
	t.Helper()
	var assignment models.Assignment
	if err := db.Where("transaction_id = ?", transactionID).First(&assignment).Error; err != nil {
		t.Fatalf("failed to load assignment for %s: %v", transactionID, err)
	}
	return &assignment
}

func TestApplyToUnclassified(t *testing.T) {
	t.Run("assigns_matching_expenses", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		groceries := testutil.CreateTestCategory(t, db)
		rule := testutil.CreateTestRule(t, db, groceries.ID, models.FieldCounterparty, models.StrategyContains, "rewe")

		matched := testutil.CreateTestExpense(t, db, "REWE Markt Berlin", -12.50)
		unmatched := testutil.CreateTestExpense(t, db, "Bakery Schmidt", -3.20)

		changed, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)
		if changed != 1 {
			t.Fatalf("expected 1 classification, got %d", changed)
		}

		assignment := loadAssignment(t, db, matched.ID)
		if assignment.CategoryID != groceries.ID {
			t.Errorf("expected category %s, got %s", groceries.ID, assignment.CategoryID)
		}
		if assignment.Source != models.SourceRule {
			t.Errorf("expected source rule, got %s", assignment.Source)
		}
		if assignment.RuleID == nil || *assignment.RuleID != rule.ID {
			t.Errorf("expected rule provenance %s, got %v", rule.ID, assignment.RuleID)
		}

		var count int64
		db.Model(&models.Assignment{}).Where("transaction_id = ?", unmatched.ID).Count(&count)
		if count != 0 {
			t.Error("expected unmatched transaction to stay unclassified")
		}
	})

	t.Run("never_touches_income", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		salary := testutil.CreateTestCategory(t, db)
		testutil.CreateTestRule(t, db, salary.ID, models.FieldCounterparty, models.StrategyContains, "acme")
		testutil.CreateTestTransaction(t, db, "ACME GmbH", "Salary", 2500.00)

		changed, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)
		if changed != 0 {
			t.Errorf("expected income to be skipped, got %d classifications", changed)
		}
	})

	t.Run("preserves_manual_assignments", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		groceries := testutil.CreateTestCategory(t, db)
		dining := testutil.CreateTestCategory(t, db)
		testutil.CreateTestRule(t, db, groceries.ID, models.FieldCounterparty, models.StrategyContains, "rewe")

		tx := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		_, err := svc.SetManualCategory([]string{tx.ID}, dining.ID)
		testutil.AssertNoError(t, err)

		changed, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)
		if changed != 0 {
			t.Fatalf("expected selective run to skip classified transactions, got %d", changed)
		}

		assignment := loadAssignment(t, db, tx.ID)
		if assignment.CategoryID != dining.ID || assignment.Source != models.SourceManual {
			t.Errorf("expected manual assignment to survive, got category=%s source=%s",
				assignment.CategoryID, assignment.Source)
		}
	})

	t.Run("exact_beats_contains_regardless_of_priority", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		byContains := testutil.CreateTestCategory(t, db)
		byExact := testutil.CreateTestCategory(t, db)

		containsRule := testutil.CreateTestRule(t, db, byContains.ID, models.FieldCounterparty, models.StrategyContains, "rewe")
		db.Model(containsRule).Update("priority", 1)
		exactRule := testutil.CreateTestRule(t, db, byExact.ID, models.FieldCounterparty, models.StrategyExact, "rewe markt")
		db.Model(exactRule).Update("priority", 999)

		tx := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)

		_, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)

		assignment := loadAssignment(t, db, tx.ID)
		if assignment.CategoryID != byExact.ID {
			t.Errorf("expected exact rule to win over lower-priority contains rule")
		}
	})

	t.Run("priority_breaks_ties_within_strategy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		low := testutil.CreateTestCategory(t, db)
		high := testutil.CreateTestCategory(t, db)

		lowRule := testutil.CreateTestRule(t, db, low.ID, models.FieldCounterparty, models.StrategyContains, "markt")
		db.Model(lowRule).Update("priority", 50)
		highRule := testutil.CreateTestRule(t, db, high.ID, models.FieldCounterparty, models.StrategyContains, "rewe")
		db.Model(highRule).Update("priority", 10)

		tx := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)

		_, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)

		assignment := loadAssignment(t, db, tx.ID)
		if assignment.CategoryID != high.ID {
			t.Errorf("expected lower priority value to win within the same strategy")
		}
	})

	t.Run("ignores_disabled_rules", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		groceries := testutil.CreateTestCategory(t, db)
		rule := testutil.CreateTestRule(t, db, groceries.ID, models.FieldCounterparty, models.StrategyContains, "rewe")
		db.Model(rule).Update("enabled", false)

		testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)

		changed, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)
		if changed != 0 {
			t.Errorf("expected disabled rule to be skipped, got %d classifications", changed)
		}
	})
}

func TestReapplyAll(t *testing.T) {
	t.Run("overwrites_manual_assignments", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		groceries := testutil.CreateTestCategory(t, db)
		dining := testutil.CreateTestCategory(t, db)
		rule := testutil.CreateTestRule(t, db, groceries.ID, models.FieldCounterparty, models.StrategyContains, "rewe")

		tx := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		_, err := svc.SetManualCategory([]string{tx.ID}, dining.ID)
		testutil.AssertNoError(t, err)

		changed, err := svc.ReapplyAll()
		testutil.AssertNoError(t, err)
		if changed != 1 {
			t.Fatalf("expected 1 reclassification, got %d", changed)
		}

		assignment := loadAssignment(t, db, tx.ID)
		if assignment.CategoryID != groceries.ID {
			t.Errorf("expected full reapply to overwrite manual category")
		}
		if assignment.Source != models.SourceRule {
			t.Errorf("expected source rule after reapply, got %s", assignment.Source)
		}
		if assignment.RuleID == nil || *assignment.RuleID != rule.ID {
			t.Errorf("expected rule provenance after reapply")
		}
	})

	t.Run("rule_edit_moves_assignment", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		oldCat := testutil.CreateTestCategory(t, db)
		newCat := testutil.CreateTestCategory(t, db)
		rule := testutil.CreateTestRule(t, db, oldCat.ID, models.FieldCounterparty, models.StrategyContains, "rewe")

		tx := testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		_, err := svc.ApplyToUnclassified()
		testutil.AssertNoError(t, err)

		// Retarget the rule, then reapply everything.
		db.Model(rule).Update("category_id", newCat.ID)
		_, err = svc.ReapplyAll()
		testutil.AssertNoError(t, err)

		assignment := loadAssignment(t, db, tx.ID)
		if assignment.CategoryID != newCat.ID {
			t.Errorf("expected assignment to follow the edited rule")
		}
		if assignment.Source != models.SourceRule {
			t.Errorf("expected source to stay rule, got %s", assignment.Source)
		}
	})

	t.Run("keeps_assignment_when_no_rule_matches", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		dining := testutil.CreateTestCategory(t, db)
		tx := testutil.CreateTestExpense(t, db, "Bakery Schmidt", -3.20)
		_, err := svc.SetManualCategory([]string{tx.ID}, dining.ID)
		testutil.AssertNoError(t, err)

		changed, err := svc.ReapplyAll()
		testutil.AssertNoError(t, err)
		if changed != 0 {
			t.Fatalf("expected no reclassifications without rules, got %d", changed)
		}

		assignment := loadAssignment(t, db, tx.ID)
		if assignment.CategoryID != dining.ID || assignment.Source != models.SourceManual {
			t.Errorf("expected untouched manual assignment to survive full reapply")
		}
	})
}

func TestApplyRule(t *testing.T) {
	t.Run("applies_single_rule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		groceries := testutil.CreateTestCategory(t, db)
		rule := testutil.CreateTestRule(t, db, groceries.ID, models.FieldCounterparty, models.StrategyContains, "rewe")

		testutil.CreateTestExpense(t, db, "REWE Markt", -12.50)
		testutil.CreateTestExpense(t, db, "REWE City", -8.00)
		testutil.CreateTestExpense(t, db, "Bakery Schmidt", -3.20)

		changed, err := svc.ApplyRule(rule.ID)
		testutil.AssertNoError(t, err)
		if changed != 2 {
			t.Errorf("expected 2 classifications, got %d", changed)
		}
	})

	t.Run("unknown_rule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		_, err := svc.ApplyRule("00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "RULE_NOT_FOUND")
	})
}

func TestSetManualCategory(t *testing.T) {
	t.Run("skips_unknown_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		dining := testutil.CreateTestCategory(t, db)
		tx := testutil.CreateTestExpense(t, db, "Bakery Schmidt", -3.20)

		result, err := svc.SetManualCategory([]string{tx.ID, "00000000-0000-0000-0000-000000000000"}, dining.ID)
		testutil.AssertNoError(t, err)
		if result.Updated != 1 {
			t.Errorf("expected 1 update, got %d", result.Updated)
		}
		if len(result.MissingIDs) != 1 {
			t.Errorf("expected 1 missing ID, got %v", result.MissingIDs)
		}
	})

	t.Run("unknown_category_aborts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		tx := testutil.CreateTestExpense(t, db, "Bakery Schmidt", -3.20)
		_, err := svc.SetManualCategory([]string{tx.ID}, "00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		var count int64
		db.Model(&models.Assignment{}).Count(&count)
		if count != 0 {
			t.Errorf("expected no assignments after aborted call, got %d", count)
		}
	})

	t.Run("no_ids", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newClassifyService(db)

		_, err := svc.SetManualCategory(nil, "irrelevant")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

// End to end: ingest a small statement, classify it with two rules, then
// re-ingest the same file and verify nothing duplicates.
func TestIngestThenClassify(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var mu sync.Mutex
	ingestSvc := NewIngestionService(db, &mu)
	classifySvc := NewClassifyService(db, &mu)

	groceries := testutil.CreateTestCategoryWithName(t, db, "Groceries")
	transport := testutil.CreateTestCategoryWithName(t, db, "Transport")
	testutil.CreateTestRule(t, db, groceries.ID, models.FieldCounterparty, models.StrategyContains, "rewe")
	testutil.CreateTestRule(t, db, transport.ID, models.FieldReference, models.StrategyContains, "monthly ticket")

	rows := []string{
		"31.12.2023 14:05:00,REWE Markt,Card payment,-12.50",
		"02.01.2024 08:00:00,BVG,Monthly ticket,-49.00",
		"03.01.2024 19:30:00,Unknown Vendor,,-7.77",
	}

	result, err := ingestSvc.Ingest(statementCSV(rows...), "statement.csv")
	testutil.AssertNoError(t, err)
	if result.RowsIngested != 3 || result.RowsSkipped != 0 {
		t.Fatalf("expected 3 ingested / 0 skipped, got %d / %d", result.RowsIngested, result.RowsSkipped)
	}

	changed, err := classifySvc.ApplyToUnclassified()
	testutil.AssertNoError(t, err)
	if changed != 2 {
		t.Fatalf("expected 2 classified, got %d", changed)
	}

	again, err := ingestSvc.Ingest(statementCSV(rows...), "statement.csv")
	testutil.AssertNoError(t, err)
	if again.RowsIngested != 0 || again.RowsSkipped != 3 {
		t.Errorf("expected re-ingest to skip all 3 rows, got %d / %d", again.RowsIngested, again.RowsSkipped)
	}

	var assignments int64
	db.Model(&models.Assignment{}).Count(&assignments)
	if assignments != 2 {
		t.Errorf("expected 2 assignments after re-ingest, got %d", assignments)
	}
}
