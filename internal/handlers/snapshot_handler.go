package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"atelier/internal/services"
)

// SnapshotHandler handles CSV snapshot export/import and object-storage sync.
type SnapshotHandler struct {
	snapshotService services.SnapshotServicer
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshotService services.SnapshotServicer) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService}
}

// ExportCategories streams the category table as a CSV attachment.
func (h *SnapshotHandler) ExportCategories(c *gin.Context) {
	data, err := h.snapshotService.ExportCategoriesCSV()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="categories.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportRules streams the rule table as a CSV attachment.
func (h *SnapshotHandler) ExportRules(c *gin.Context) {
	data, err := h.snapshotService.ExportRulesCSV()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="rules.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ImportCategories restores categories from a snapshot CSV, upserting by name.
func (h *SnapshotHandler) ImportCategories(c *gin.Context) {
	body, err := openUpload(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer body.Close()

	imported, err := h.snapshotService.ImportCategoriesCSV(body)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// ImportRules restores rules from a snapshot CSV, upserting by ID.
func (h *SnapshotHandler) ImportRules(c *gin.Context) {
	body, err := openUpload(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer body.Close()

	imported, err := h.snapshotService.ImportRulesCSV(body)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// SyncUp pushes category and rule snapshots to the configured bucket.
func (h *SnapshotHandler) SyncUp(c *gin.Context) {
	objects, err := h.snapshotService.SyncUp(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploaded": objects})
}

// SyncDown pulls category and rule snapshots from the configured bucket
// and imports them.
func (h *SnapshotHandler) SyncDown(c *gin.Context) {
	objects, err := h.snapshotService.SyncDown(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloaded": objects})
}
