package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "atelier/internal/errors"
	"atelier/internal/models"
	"atelier/internal/pagination"
	"atelier/internal/services"
)

// RuleHandler handles rule-related requests.
type RuleHandler struct {
	ruleService services.RuleServicer
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(ruleService services.RuleServicer) *RuleHandler {
	return &RuleHandler{ruleService: ruleService}
}

// RuleRequest represents the request payload for creating or replacing a rule.
type RuleRequest struct {
	CategoryID    string               `json:"category_id" binding:"required,uuid"`
	Field         models.RuleField     `json:"field" binding:"required,rule_field"`
	Strategy      models.MatchStrategy `json:"strategy" binding:"required,match_strategy"`
	Pattern       string               `json:"pattern" binding:"required"`
	AmountMin     *decimal.Decimal     `json:"amount_min"`
	AmountMax     *decimal.Decimal     `json:"amount_max"`
	Priority      *int                 `json:"priority"`
	CaseSensitive bool                 `json:"case_sensitive"`
	Enabled       *bool                `json:"enabled"`
}

// FromTransactionRequest represents the request payload for deriving a rule
// from an existing transaction.
type FromTransactionRequest struct {
	TransactionID string               `json:"transaction_id" binding:"required,uuid"`
	CategoryID    string               `json:"category_id" binding:"required,uuid"`
	Field         models.RuleField     `json:"field" binding:"required,rule_field"`
	Strategy      models.MatchStrategy `json:"strategy" binding:"required,match_strategy"`
}

func (r *RuleRequest) toInput() services.RuleInput {
	return services.RuleInput{
		CategoryID:    r.CategoryID,
		Field:         r.Field,
		Strategy:      r.Strategy,
		Pattern:       r.Pattern,
		AmountMin:     r.AmountMin,
		AmountMax:     r.AmountMax,
		Priority:      r.Priority,
		CaseSensitive: r.CaseSensitive,
		Enabled:       r.Enabled,
	}
}

// CreateRule handles the creation of a new rule.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.ruleService.CreateRule(req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// ListRules returns rules in evaluation order.
func (h *RuleHandler) ListRules(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ruleService.ListRules(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRuleByID returns one rule.
func (h *RuleHandler) GetRuleByID(c *gin.Context) {
	rule, err := h.ruleService.GetRuleByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// UpdateRule replaces the fields of an existing rule.
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.ruleService.UpdateRule(c.Param("id"), req.toInput())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule removes a rule. Existing assignments keep their category.
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.ruleService.DeleteRule(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rule deleted"})
}

// CreateFromTransaction derives a rule from a transaction's field value.
func (h *RuleHandler) CreateFromTransaction(c *gin.Context) {
	var req FromTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rule, err := h.ruleService.CreateFromTransaction(req.TransactionID, req.CategoryID, req.Field, req.Strategy)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// ImportSeed accepts a seed-list CSV and creates the categories and
// contains-rules it describes, skipping entries that already exist.
func (h *RuleHandler) ImportSeed(c *gin.Context) {
	body, err := openUpload(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer body.Close()

	result, err := h.ruleService.ImportSeed(body)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"result": result})
}
