package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "atelier/internal/errors"
	"atelier/internal/services"
)

// ClassifyHandler handles classification requests.
type ClassifyHandler struct {
	classifyService services.ClassifyServicer
}

// NewClassifyHandler creates a new ClassifyHandler.
func NewClassifyHandler(classifyService services.ClassifyServicer) *ClassifyHandler {
	return &ClassifyHandler{classifyService: classifyService}
}

// Run applies all enabled rules to currently unclassified expense
// transactions, leaving existing classifications alone.
func (h *ClassifyHandler) Run(c *gin.Context) {
	changed, err := h.classifyService.ApplyToUnclassified()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"classified": changed})
}

// Reapply re-evaluates every expense transaction, overwriting existing
// assignments where a rule matches.
func (h *ClassifyHandler) Reapply(c *gin.Context) {
	changed, err := h.classifyService.ReapplyAll()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"classified": changed})
}

// ApplyRule applies a single rule across all expense transactions.
func (h *ClassifyHandler) ApplyRule(c *gin.Context) {
	changed, err := h.classifyService.ApplyRule(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"classified": changed})
}

// ManualClassifyRequest represents the request payload for manually
// classifying a set of transactions.
type ManualClassifyRequest struct {
	TransactionIDs []string `json:"transaction_ids" binding:"required,min=1,dive,uuid"`
	CategoryID     string   `json:"category_id" binding:"required,uuid"`
}

// Manual sets the category of the given transactions by hand.
func (h *ClassifyHandler) Manual(c *gin.Context) {
	var req ManualClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.classifyService.SetManualCategory(req.TransactionIDs, req.CategoryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}
