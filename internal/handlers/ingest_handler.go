package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"atelier/internal/pagination"
	"atelier/internal/services"
)

// IngestHandler handles statement ingestion and batch requests.
type IngestHandler struct {
	ingestionService services.IngestionServicer
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(ingestionService services.IngestionServicer) *IngestHandler {
	return &IngestHandler{ingestionService: ingestionService}
}

// Ingest accepts a statement CSV (multipart "file" field or raw body) and
// runs the ingestion pipeline. The optional "source" query parameter (or
// the uploaded filename) labels the batch.
func (h *IngestHandler) Ingest(c *gin.Context) {
	source := c.Query("source")
	if f, err := c.FormFile("file"); err == nil && source == "" {
		source = f.Filename
	}
	if source == "" {
		source = "upload"
	}

	body, err := openUpload(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer body.Close()

	result, err := h.ingestionService.Ingest(body, source)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"result": result})
}

// ListBatches returns the ingestion audit trail, newest first.
func (h *IngestHandler) ListBatches(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ingestionService.ListBatches(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetBatchByID returns one ingestion batch.
func (h *IngestHandler) GetBatchByID(c *gin.Context) {
	batch, err := h.ingestionService.GetBatchByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batch": batch})
}
