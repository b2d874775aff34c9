package services

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "atelier/internal/errors"
	"atelier/internal/models"
	"atelier/internal/pagination"
)

// Seed-list column names. Description and the comment are optional content
// but the headers themselves are part of the expected layout.
var seedRequiredColumns = []string{"Categories", "Description", "Providers"}

const seedCommentColumn = "Additional comment"

// ruleService handles rule-related business logic.
type ruleService struct {
	db *gorm.DB
}

// NewRuleService creates a new RuleServicer.
func NewRuleService(db *gorm.DB) RuleServicer {
	return &ruleService{db: db}
}

func (s *ruleService) validate(input *RuleInput) error {
	if !input.Field.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown rule field: "+string(input.Field))
	}
	if !input.Strategy.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown match strategy: "+string(input.Strategy))
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "rule pattern is required")
	}
	if input.AmountMin != nil && input.AmountMax != nil && input.AmountMin.GreaterThan(*input.AmountMax) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount_min is greater than amount_max")
	}

	var count int64
	if err := s.db.Model(&models.Category{}).Where("id = ?", input.CategoryID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}

func ruleFromInput(input RuleInput) *models.Rule {
	rule := &models.Rule{
		CategoryID:    input.CategoryID,
		Field:         input.Field,
		Strategy:      input.Strategy,
		Pattern:       input.Pattern,
		Priority:      models.DefaultRulePriority,
		CaseSensitive: input.CaseSensitive,
		Enabled:       true,
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}
	if input.AmountMin != nil {
		rule.AmountMin = decimal.NewNullDecimal(*input.AmountMin)
	}
	if input.AmountMax != nil {
		rule.AmountMax = decimal.NewNullDecimal(*input.AmountMax)
	}
	return rule
}

// CreateRule creates a new rule after validating the closed field and
// strategy sets, the pattern, and the category reference.
func (s *ruleService) CreateRule(input RuleInput) (*models.Rule, error) {
	if err := s.validate(&input); err != nil {
		return nil, err
	}
	rule := ruleFromInput(input)
	if err := s.db.Create(rule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// ListRules retrieves rules ordered by evaluation order within equal
// strategy precedence: enabled first, then priority, then creation order.
func (s *ruleService) ListRules(page pagination.PageRequest) (*pagination.PageResponse[models.Rule], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.Rule{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rules []models.Rule
	if err := s.db.Model(&models.Rule{}).
		Scopes(pagination.Paginate(page)).
		Order("enabled DESC, priority ASC, id ASC").
		Preload("Category").
		Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rules, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetRuleByID retrieves a rule by ID.
func (s *ruleService) GetRuleByID(ruleID string) (*models.Rule, error) {
	var rule models.Rule
	if err := s.db.Where("id = ?", ruleID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRuleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rule, nil
}

// UpdateRule replaces a rule's matching definition in place.
func (s *ruleService) UpdateRule(ruleID string, input RuleInput) (*models.Rule, error) {
	rule, err := s.GetRuleByID(ruleID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&input); err != nil {
		return nil, err
	}

	next := ruleFromInput(input)
	updates := map[string]interface{}{
		"category_id":    next.CategoryID,
		"field":          next.Field,
		"strategy":       next.Strategy,
		"pattern":        next.Pattern,
		"amount_min":     next.AmountMin,
		"amount_max":     next.AmountMax,
		"priority":       next.Priority,
		"case_sensitive": next.CaseSensitive,
		"enabled":        next.Enabled,
	}
	if err := s.db.Model(rule).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rule, nil
}

// DeleteRule removes a rule. Assignments made by the rule keep their
// provenance pointer; the ledger of past classifications is not rewritten.
func (s *ruleService) DeleteRule(ruleID string) error {
	rule, err := s.GetRuleByID(ruleID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(rule).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// CreateFromTransaction seeds a rule from an observed transaction, using
// the selected field's text as the pattern.
func (s *ruleService) CreateFromTransaction(transactionID, categoryID string, field models.RuleField, strategy models.MatchStrategy) (*models.Rule, error) {
	var tx models.Transaction
	if err := s.db.Where("id = ?", transactionID).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	pattern := strings.TrimSpace(tx.Counterparty)
	if field == models.FieldReference {
		pattern = strings.TrimSpace(tx.Reference)
	}
	if pattern == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction has no text in the selected field")
	}

	return s.CreateRule(RuleInput{
		CategoryID: categoryID,
		Field:      field,
		Strategy:   strategy,
		Pattern:    pattern,
	})
}

// ImportSeed reads a seed list (columns: Categories, Description,
// Providers, Additional comment), upserting categories by name and
// creating one contains-rule on the counterparty per provider substring.
// A (category, field, strategy, pattern) combination that already exists
// is skipped, so re-importing the same list is idempotent.
func (s *ruleService) ImportSeed(r io.Reader) (*SeedResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed seed CSV: "+err.Error())
	}
	if len(records) == 0 {
		return nil, apperrors.ErrEmptyDataset
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range seedRequiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(missing, header)
	}

	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := &SeedResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range records[1:] {
			name := cell(row, "Categories")
			if name == "" {
				continue
			}

			var category models.Category
			err := tx.Where("name = ?", name).First(&category).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				category = models.Category{
					Name:        name,
					Description: cell(row, "Description"),
					Comment:     cell(row, seedCommentColumn),
					IsActive:    true,
				}
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
				result.CategoriesAdded++
			case err != nil:
				return err
			}

			for _, provider := range strings.Split(cell(row, "Providers"), ",") {
				pattern := strings.TrimSpace(provider)
				if pattern == "" {
					continue
				}

				var count int64
				if err := tx.Model(&models.Rule{}).
					Where("category_id = ? AND field = ? AND strategy = ? AND pattern = ?",
						category.ID, models.FieldCounterparty, models.StrategyContains, pattern).
					Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					result.RulesSkipped++
					continue
				}

				rule := &models.Rule{
					CategoryID: category.ID,
					Field:      models.FieldCounterparty,
					Strategy:   models.StrategyContains,
					Pattern:    pattern,
					Priority:   models.DefaultRulePriority,
					Enabled:    true,
				}
				if err := tx.Create(rule).Error; err != nil {
					return err
				}
				result.RulesAdded++
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}
