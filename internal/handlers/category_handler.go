package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "atelier/internal/errors"
	"atelier/internal/pagination"
	"atelier/internal/services"
)

// CategoryHandler handles category-related requests.
type CategoryHandler struct {
	categoryService services.CategoryServicer
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categoryService services.CategoryServicer) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CreateCategoryRequest represents the request payload for creating a category.
type CreateCategoryRequest struct {
	Name            string           `json:"name" binding:"required"`
	Description     string           `json:"description"`
	Comment         string           `json:"comment"`
	ThresholdAmount *decimal.Decimal `json:"threshold_amount"`
}

// UpdateCategoryRequest represents the request payload for updating a
// category. Absent fields leave the stored values untouched.
type UpdateCategoryRequest struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Comment         *string          `json:"comment"`
	ThresholdAmount *decimal.Decimal `json:"threshold_amount"`
	IsActive        *bool            `json:"is_active"`
}

// CreateCategory handles the creation of a new category.
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.CreateCategory(req.Name, req.Description, req.Comment, req.ThresholdAmount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// ListCategories returns categories, optionally restricted to active ones
// via the "active" query parameter.
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, err)
		return
	}

	activeOnly := c.Query("active") == "true"

	result, err := h.categoryService.ListCategories(activeOnly, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCategoryByID returns one category with its rules.
func (h *CategoryHandler) GetCategoryByID(c *gin.Context) {
	category, err := h.categoryService.GetCategoryByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// UpdateCategory handles a partial update of a category.
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Param("id"), services.CategoryUpdate{
		Name:            req.Name,
		Description:     req.Description,
		Comment:         req.Comment,
		ThresholdAmount: req.ThresholdAmount,
		IsActive:        req.IsActive,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory removes a category that no rule or assignment references.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	if err := h.categoryService.DeleteCategory(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}
