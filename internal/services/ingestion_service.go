package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"atelier/internal/canon"
	apperrors "atelier/internal/errors"
	"atelier/internal/fingerprint"
	"atelier/internal/models"
	"atelier/internal/pagination"
)

// Statement column names, case-exact as the bank exports them.
const (
	colCompletedDate = "Completed date"
	colCounterparty  = "Counterparty name"
	colReference     = "Reference"
	colAmount        = "Amount"
)

var statementColumns = []string{colCompletedDate, colCounterparty, colReference, colAmount}

// Statement timestamps are day-first; a bare date is accepted and lands at
// midnight.
var statementTimeLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

// ingestionService converts raw statement rows into transactions,
// deduplicating against history by content fingerprint.
type ingestionService struct {
	db *gorm.DB
	mu *sync.Mutex
}

// NewIngestionService creates a new IngestionServicer. The mutex is the
// process-wide write lock shared with the classification engine: an
// ingestion must not interleave with another writer between taking its
// fingerprint snapshot and committing.
func NewIngestionService(db *gorm.DB, mu *sync.Mutex) IngestionServicer {
	return &ingestionService{db: db, mu: mu}
}

// statementRow is one parsed, canonicalized statement line.
type statementRow struct {
	completedAt  time.Time
	counterparty string
	reference    string
	amount       decimal.Decimal
	fingerprint  string
}

// Ingest parses a statement CSV and persists the rows not already known.
// The whole call is atomic: a schema or parse failure persists nothing,
// and on success exactly one batch row plus the new transactions commit
// together. Re-running the same file ingests zero new rows.
func (s *ingestionService) Ingest(r io.Reader, source string) (*IngestResult, error) {
	rows, err := parseStatement(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &IngestResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		batch := &models.IngestionBatch{Source: source}
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		result.BatchID = batch.ID

		// One snapshot of known fingerprints per call, not per row.
		var known []string
		if err := tx.Model(&models.Transaction{}).Pluck("fingerprint", &known).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(known)+len(rows))
		for _, fp := range known {
			seen[fp] = struct{}{}
		}

		for _, row := range rows {
			if _, dup := seen[row.fingerprint]; dup {
				result.RowsSkipped++
				continue
			}
			seen[row.fingerprint] = struct{}{}

			transaction := &models.Transaction{
				Fingerprint:  row.fingerprint,
				CompletedAt:  row.completedAt,
				Counterparty: row.counterparty,
				Reference:    row.reference,
				Amount:       row.amount,
				IsIncome:     row.amount.IsPositive(),
				BatchID:      &batch.ID,
			}
			if err := tx.Create(transaction).Error; err != nil {
				return err
			}
			result.RowsIngested++
		}

		return tx.Model(batch).Updates(map[string]interface{}{
			"rows_ingested": result.RowsIngested,
			"rows_skipped":  result.RowsSkipped,
		}).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// parseStatement reads and validates the full dataset up front so that no
// partial ingestion can happen on malformed input.
func parseStatement(r io.Reader) ([]statementRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed statement CSV: "+err.Error())
	}
	if len(records) == 0 {
		return nil, apperrors.ErrEmptyDataset
	}

	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	var missing []string
	for _, name := range statementColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewSchemaError(missing, header)
	}

	cell := func(row []string, name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	rows := make([]statementRow, 0, len(records)-1)
	for i, record := range records[1:] {
		completedAt, err := parseDayFirst(strings.TrimSpace(cell(record, colCompletedDate)))
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("row %d: %v", i+2, err))
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(cell(record, colAmount)))
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("row %d: invalid amount %q", i+2, cell(record, colAmount)))
		}

		counterparty := cell(record, colCounterparty)
		reference := cell(record, colReference)
		row := statementRow{
			completedAt:  completedAt,
			counterparty: counterparty,
			reference:    reference,
			amount:       amount,
		}
		row.fingerprint = fingerprint.Compute(
			completedAt, amount,
			canon.Normalize(counterparty), canon.Normalize(reference))
		rows = append(rows, row)
	}
	return rows, nil
}

// parseDayFirst parses a day-first statement timestamp: ambiguous
// two-part dates resolve day-before-month.
func parseDayFirst(value string) (time.Time, error) {
	for _, layout := range statementTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid day-first timestamp %q", value)
}

// GetBatchByID retrieves an ingestion batch by ID.
func (s *ingestionService) GetBatchByID(batchID string) (*models.IngestionBatch, error) {
	var batch models.IngestionBatch
	if err := s.db.Where("id = ?", batchID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBatchNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &batch, nil
}

// ListBatches retrieves ingestion batches, newest first.
func (s *ingestionService) ListBatches(page pagination.PageRequest) (*pagination.PageResponse[models.IngestionBatch], error) {
	page.Defaults()

	var totalItems int64
	if err := s.db.Model(&models.IngestionBatch{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var batches []models.IngestionBatch
	if err := s.db.Model(&models.IngestionBatch{}).
		Scopes(pagination.Paginate(page)).
		Order("created_at DESC, id DESC").
		Find(&batches).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(batches, page.Page, page.PageSize, totalItems)
	return &result, nil
}
