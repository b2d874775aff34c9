package handlers

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	apperrors "atelier/internal/errors"
	"atelier/internal/logger"
)

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		// Schema failures additionally expose the column lists so the
		// caller can see what the dataset actually carried.
		var schemaErr *apperrors.SchemaError
		if errors.As(err, &schemaErr) {
			body["missing_columns"] = schemaErr.Missing
			body["found_columns"] = schemaErr.Found
		}
		c.JSON(appErr.StatusCode, gin.H{"error": body})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}

// openUpload returns a reader for the request payload: the "file" form
// field when the request is multipart, otherwise the raw body. The caller
// must close the returned reader.
func openUpload(c *gin.Context) (io.ReadCloser, error) {
	if f, err := c.FormFile("file"); err == nil {
		return openFormFile(f)
	}
	if c.Request.Body == nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "request has no body")
	}
	return c.Request.Body, nil
}

func openFormFile(f *multipart.FileHeader) (io.ReadCloser, error) {
	file, err := f.Open()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	return file, nil
}
