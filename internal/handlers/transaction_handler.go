package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"atelier/internal/pagination"
	"atelier/internal/services"
)

// TransactionHandler handles the read side: transaction listings and the
// monthly spending report.
type TransactionHandler struct {
	reportService services.ReportServicer
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(reportService services.ReportServicer) *TransactionHandler {
	return &TransactionHandler{reportService: reportService}
}

// ListTransactions returns transactions newest first. Supported filters:
// "uncategorized=true", "category_id", and "income=true|false".
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, err)
		return
	}

	filter := services.TransactionFilter{
		UncategorizedOnly: c.Query("uncategorized") == "true",
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	if incomeParam := c.Query("income"); incomeParam != "" {
		income, err := strconv.ParseBool(incomeParam)
		if err == nil {
			filter.Income = &income
		}
	}

	result, err := h.reportService.ListTransactions(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransactionByID returns one transaction with its assignment.
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	transaction, err := h.reportService.GetTransactionByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// MonthlyReport returns absolute spend per month and category. Income rows
// are excluded unless "include_income=true"; "category_ids" takes a
// comma-separated list.
func (h *TransactionHandler) MonthlyReport(c *gin.Context) {
	includeIncome := c.Query("include_income") == "true"

	var categoryIDs []string
	if raw := c.Query("category_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				categoryIDs = append(categoryIDs, id)
			}
		}
	}

	totals, err := h.reportService.MonthlyExpenseByCategory(includeIncome, categoryIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": totals})
}
