package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "atelier/internal/errors"
	"atelier/internal/matcher"
	"atelier/internal/models"
)

// classifyService applies rules to transactions and records assignments.
type classifyService struct {
	db *gorm.DB
	mu *sync.Mutex
}

// NewClassifyService creates a new ClassifyServicer sharing the
// process-wide write lock with the ingestion pipeline.
func NewClassifyService(db *gorm.DB, mu *sync.Mutex) ClassifyServicer {
	return &classifyService{db: db, mu: mu}
}

// orderRules sorts enabled rules into evaluation order: strategy
// precedence (exact, contains, regex, fuzzy), then ascending priority.
// The sort is stable, so rules tied on both keys keep their creation
// order — the caller must pass rules already ordered by insertion.
func orderRules(rules []models.Rule) []models.Rule {
	ordered := make([]models.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Strategy.Precedence(), ordered[j].Strategy.Precedence()
		if pi != pj {
			return pi < pj
		}
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

// choose returns the first rule in evaluation order that matches the
// transaction, or nil when none does.
func choose(tx *models.Transaction, ordered []models.Rule) *models.Rule {
	candidate := matcher.NewCandidate(tx)
	for i := range ordered {
		if matcher.Matches(&ordered[i], candidate) {
			return &ordered[i]
		}
	}
	return nil
}

// loadOrderedRules fetches enabled rules in insertion order and sorts them
// into evaluation order. UUIDv7 primary keys make the id ordering follow
// creation time.
func loadOrderedRules(tx *gorm.DB) ([]models.Rule, error) {
	var rules []models.Rule
	if err := tx.Where("enabled = ?", true).
		Order("created_at ASC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return orderRules(rules), nil
}

// upsertAssignment writes the transaction's classification, overwriting
// any existing assignment row. A transaction has at most one assignment;
// reclassification discards the previous provenance.
func upsertAssignment(tx *gorm.DB, transactionID, categoryID string, source models.AssignmentSource, ruleID *string) error {
	var existing models.Assignment
	err := tx.Where("transaction_id = ?", transactionID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&models.Assignment{
			TransactionID: transactionID,
			CategoryID:    categoryID,
			Source:        source,
			RuleID:        ruleID,
			AssignedAt:    time.Now().UTC(),
		}).Error
	case err != nil:
		return err
	}
	return tx.Model(&existing).Updates(map[string]interface{}{
		"category_id": categoryID,
		"source":      source,
		"rule_id":     ruleID,
		"assigned_at": time.Now().UTC(),
	}).Error
}

// ApplyToUnclassified evaluates only expense transactions that have no
// current assignment, leaving manual and prior rule classifications
// untouched. Income is never auto-classified.
func (s *classifyService) ApplyToUnclassified() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ordered, err := loadOrderedRules(tx)
		if err != nil {
			return err
		}

		var transactions []models.Transaction
		if err := tx.Where("is_income = ?", false).
			Where("id NOT IN (?)", tx.Model(&models.Assignment{}).Select("transaction_id")).
			Find(&transactions).Error; err != nil {
			return err
		}

		for i := range transactions {
			rule := choose(&transactions[i], ordered)
			if rule == nil {
				continue
			}
			if err := upsertAssignment(tx, transactions[i].ID, rule.CategoryID, models.SourceRule, &rule.ID); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return changed, nil
}

// ReapplyAll evaluates every expense transaction, overwriting any existing
// assignment — rule-sourced or manual — when a rule matches. Transactions
// no rule matches keep whatever assignment they had.
func (s *classifyService) ReapplyAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		ordered, err := loadOrderedRules(tx)
		if err != nil {
			return err
		}

		var transactions []models.Transaction
		if err := tx.Where("is_income = ?", false).Find(&transactions).Error; err != nil {
			return err
		}

		for i := range transactions {
			rule := choose(&transactions[i], ordered)
			if rule == nil {
				continue
			}
			if err := upsertAssignment(tx, transactions[i].ID, rule.CategoryID, models.SourceRule, &rule.ID); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return changed, nil
}

// ApplyRule applies one rule across all expense transactions, overwriting
// the assignment of every transaction it matches. Used after editing a
// single rule.
func (s *classifyService) ApplyRule(ruleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rule models.Rule
		if err := tx.Where("id = ?", ruleID).First(&rule).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrRuleNotFound
			}
			return err
		}

		var transactions []models.Transaction
		if err := tx.Where("is_income = ?", false).Find(&transactions).Error; err != nil {
			return err
		}

		for i := range transactions {
			if !matcher.Matches(&rule, matcher.NewCandidate(&transactions[i])) {
				continue
			}
			if err := upsertAssignment(tx, transactions[i].ID, rule.CategoryID, models.SourceRule, &rule.ID); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return 0, appErr
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return changed, nil
}

// SetManualCategory classifies the given transactions by hand, overwriting
// any existing assignment with source=manual and no rule provenance.
// Transaction IDs that do not exist are skipped and reported back; an
// unknown category aborts the whole call.
func (s *classifyService) SetManualCategory(transactionIDs []string, categoryID string) (*ManualResult, error) {
	if len(transactionIDs) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "no transaction IDs given")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &ManualResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Category{}).Where("id = ?", categoryID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.ErrCategoryNotFound
		}

		for _, id := range transactionIDs {
			var exists int64
			if err := tx.Model(&models.Transaction{}).Where("id = ?", id).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				result.MissingIDs = append(result.MissingIDs, id)
				continue
			}
			if err := upsertAssignment(tx, id, categoryID, models.SourceManual, nil); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}
