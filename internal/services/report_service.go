package services

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "atelier/internal/errors"
	"atelier/internal/models"
	"atelier/internal/pagination"
)

// reportService serves the read side: transaction listings and the
// monthly spending aggregation.
type reportService struct {
	db *gorm.DB
}

// NewReportService creates a new ReportServicer.
func NewReportService(db *gorm.DB) ReportServicer {
	return &reportService{db: db}
}

// ListTransactions retrieves transactions with their assignment and
// category preloaded, newest first.
func (s *reportService) ListTransactions(filter TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{})
	if filter.UncategorizedOnly {
		base = base.Where("id NOT IN (?)", s.db.Model(&models.Assignment{}).Select("transaction_id"))
	}
	if filter.CategoryID != nil {
		base = base.Where("id IN (?)",
			s.db.Model(&models.Assignment{}).Select("transaction_id").Where("category_id = ?", *filter.CategoryID))
	}
	if filter.Income != nil {
		base = base.Where("is_income = ?", *filter.Income)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("completed_at DESC, id DESC").
		Preload("Assignment").
		Preload("Assignment.Category").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTransactionByID retrieves one transaction with its classification.
func (s *reportService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("id = ?", transactionID).
		Preload("Assignment").
		Preload("Assignment.Category").
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// MonthlyExpenseByCategory sums absolute amounts per month and category.
// Unassigned transactions land in an empty-named category bucket. The
// aggregation runs in Go so it behaves identically on SQLite and Postgres.
func (s *reportService) MonthlyExpenseByCategory(includeIncome bool, categoryIDs []string) ([]MonthlyCategoryTotal, error) {
	base := s.db.Model(&models.Transaction{})
	if !includeIncome {
		base = base.Where("is_income = ?", false)
	}

	var transactions []models.Transaction
	if err := base.Preload("Assignment").Preload("Assignment.Category").Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	wanted := make(map[string]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		wanted[id] = struct{}{}
	}

	type key struct{ month, category string }
	totals := make(map[key]decimal.Decimal)
	for i := range transactions {
		tx := &transactions[i]
		categoryName := ""
		if tx.Assignment != nil {
			if len(wanted) > 0 {
				if _, ok := wanted[tx.Assignment.CategoryID]; !ok {
					continue
				}
			}
			if tx.Assignment.Category != nil {
				categoryName = tx.Assignment.Category.Name
			}
		} else if len(wanted) > 0 {
			continue
		}

		k := key{month: tx.CompletedAt.Format("2006-01"), category: categoryName}
		totals[k] = totals[k].Add(tx.Amount.Abs())
	}

	result := make([]MonthlyCategoryTotal, 0, len(totals))
	for k, total := range totals {
		result = append(result, MonthlyCategoryTotal{Month: k.month, Category: k.category, Total: total})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Month != result[j].Month {
			return result[i].Month < result[j].Month
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}
