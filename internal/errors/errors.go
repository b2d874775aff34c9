// Package errors provides the structured error types for the Atelier API.
// All service-layer errors use AppError so handlers can render consistent
// responses without leaking internal details to clients.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// SchemaError reports the column-level detail of a dataset whose header
// does not carry the required fields. It rides inside an AppError as the
// internal error so callers can recover the lists with errors.As.
type SchemaError struct {
	Missing []string
	Found   []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing columns: %s; found: %s",
		strings.Join(e.Missing, ", "), strings.Join(e.Found, ", "))
}

// NewSchemaError builds the AppError for a failed header check. The whole
// operation aborts; nothing is persisted on a schema failure.
func NewSchemaError(missing, found []string) *AppError {
	detail := &SchemaError{Missing: missing, Found: found}
	return &AppError{
		Code:       ErrSchemaMismatch.Code,
		Message:    "Dataset " + detail.Error(),
		StatusCode: ErrSchemaMismatch.StatusCode,
		Internal:   detail,
	}
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Ingestion errors.
var (
	ErrSchemaMismatch = &AppError{Code: "SCHEMA_MISMATCH", Message: "Dataset is missing required columns", StatusCode: http.StatusBadRequest}
	ErrEmptyDataset   = &AppError{Code: "EMPTY_DATASET", Message: "Dataset contains no rows", StatusCode: http.StatusBadRequest}
)

// Category errors.
var (
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCategory = &AppError{Code: "DUPLICATE_CATEGORY", Message: "A category with this name already exists", StatusCode: http.StatusConflict}
	ErrCategoryInUse     = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is referenced by rules or assignments", StatusCode: http.StatusConflict}
)

// Rule errors.
var (
	ErrRuleNotFound = &AppError{Code: "RULE_NOT_FOUND", Message: "Rule not found", StatusCode: http.StatusNotFound}
)

// Transaction errors.
var (
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrBatchNotFound       = &AppError{Code: "BATCH_NOT_FOUND", Message: "Ingestion batch not found", StatusCode: http.StatusNotFound}
)

// Snapshot errors.
var (
	ErrSnapshotNotConfigured = &AppError{Code: "SNAPSHOT_NOT_CONFIGURED", Message: "Snapshot storage is not configured", StatusCode: http.StatusServiceUnavailable}
	ErrSnapshotNotFound      = &AppError{Code: "SNAPSHOT_NOT_FOUND", Message: "Snapshot object not found", StatusCode: http.StatusNotFound}
)
