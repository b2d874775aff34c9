package services

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "atelier/internal/errors"
	"atelier/internal/models"
	"atelier/internal/pagination"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// CreateCategory creates a new category with a unique name.
func (s *categoryService) CreateCategory(name, description, comment string, threshold *decimal.Decimal) (*models.Category, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	var count int64
	if err := s.db.Model(&models.Category{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateCategory
	}

	category := &models.Category{
		Name:        name,
		Description: description,
		Comment:     comment,
		IsActive:    true,
	}
	if threshold != nil {
		category.ThresholdAmount = decimal.NewNullDecimal(*threshold)
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// ListCategories retrieves a paginated list of categories ordered by name.
func (s *categoryService) ListCategories(activeOnly bool, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.Model(&models.Category{})
	if activeOnly {
		base = base.Where("is_active = ?", true)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Scopes(pagination.Paginate(page)).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID.
func (s *categoryService) GetCategoryByID(categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// UpdateCategory applies the provided field updates to an existing category.
// Renames are checked against the unique-name constraint first.
func (s *categoryService) UpdateCategory(categoryID string, update CategoryUpdate) (*models.Category, error) {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Name != nil && *update.Name != category.Name {
		if *update.Name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		var count int64
		if err := s.db.Model(&models.Category{}).
			Where("name = ? AND id <> ?", *update.Name, categoryID).
			Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return nil, apperrors.ErrDuplicateCategory
		}
		updates["name"] = *update.Name
	}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.Comment != nil {
		updates["comment"] = *update.Comment
	}
	if update.ThresholdAmount != nil {
		updates["threshold_amount"] = decimal.NewNullDecimal(*update.ThresholdAmount)
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return category, nil
}

// DeleteCategory soft-deletes a category that nothing references. A
// category still referenced by rules or assignments is refused; disable it
// via IsActive instead.
func (s *categoryService) DeleteCategory(categoryID string) error {
	category, err := s.GetCategoryByID(categoryID)
	if err != nil {
		return err
	}

	var ruleCount int64
	if err := s.db.Model(&models.Rule{}).Where("category_id = ?", categoryID).Count(&ruleCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var assignmentCount int64
	if err := s.db.Model(&models.Assignment{}).Where("category_id = ?", categoryID).Count(&assignmentCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if ruleCount > 0 || assignmentCount > 0 {
		return apperrors.ErrCategoryInUse
	}

	if err := s.db.Delete(category).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
