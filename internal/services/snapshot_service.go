package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "atelier/internal/errors"
	"atelier/internal/models"
	"atelier/internal/snapshot"
)

// Snapshot object names in remote storage.
const (
	categoriesObject = "categories.csv"
	rulesObject      = "rules.csv"
)

var categoryHeader = []string{"name", "description", "comment", "threshold_amount", "is_active"}
var ruleHeader = []string{"id", "category", "field", "strategy", "pattern", "amount_min", "amount_max", "priority", "case_sensitive", "enabled"}

// snapshotService exports the category and rule tables as CSV, imports
// them back with upsert semantics, and optionally syncs the files against
// an object store.
type snapshotService struct {
	db    *gorm.DB
	store snapshot.ObjectStore // nil when no bucket is configured
}

// NewSnapshotService creates a new SnapshotServicer. Passing a nil store
// disables SyncUp/SyncDown while keeping local export/import available.
func NewSnapshotService(db *gorm.DB, store snapshot.ObjectStore) SnapshotServicer {
	return &snapshotService{db: db, store: store}
}

// ExportCategoriesCSV renders all categories, mirroring the table's
// visible columns. Import is upsert-by-name, so no IDs are exported.
func (s *snapshotService) ExportCategoriesCSV() ([]byte, error) {
	var categories []models.Category
	if err := s.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(categoryHeader)
	for i := range categories {
		c := &categories[i]
		threshold := ""
		if c.ThresholdAmount.Valid {
			threshold = c.ThresholdAmount.Decimal.String()
		}
		_ = w.Write([]string{c.Name, c.Description, c.Comment, threshold, strconv.FormatBool(c.IsActive)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

// ImportCategoriesCSV upserts categories by name from a previously
// exported snapshot. Returns the number of rows applied.
func (s *snapshotService) ImportCategoriesCSV(r io.Reader) (int, error) {
	records, index, err := readSnapshot(r, categoryHeader[:1])
	if err != nil {
		return 0, err
	}

	applied := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range records {
			name := strings.TrimSpace(index.cell(row, "name"))
			if name == "" {
				continue
			}

			fields := map[string]interface{}{
				"description": index.cell(row, "description"),
				"comment":     index.cell(row, "comment"),
				"is_active":   index.cell(row, "is_active") != "false",
			}
			if raw := strings.TrimSpace(index.cell(row, "threshold_amount")); raw != "" {
				threshold, err := decimal.NewFromString(raw)
				if err != nil {
					return apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid threshold_amount "+raw)
				}
				fields["threshold_amount"] = decimal.NewNullDecimal(threshold)
			}

			var existing models.Category
			err := tx.Where("name = ?", name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				category := models.Category{Name: name}
				if err := tx.Create(&category).Error; err != nil {
					return err
				}
				if err := tx.Model(&category).Updates(fields).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Updates(fields).Error; err != nil {
					return err
				}
			}
			applied++
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return 0, appErr
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return applied, nil
}

// ExportRulesCSV renders all rules with their identifiers so a re-import
// can upsert by ID.
func (s *snapshotService) ExportRulesCSV() ([]byte, error) {
	var rules []models.Rule
	if err := s.db.Order("created_at ASC, id ASC").Preload("Category").Find(&rules).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(ruleHeader)
	for i := range rules {
		r := &rules[i]
		categoryName := ""
		if r.Category != nil {
			categoryName = r.Category.Name
		}
		min, max := "", ""
		if r.AmountMin.Valid {
			min = r.AmountMin.Decimal.String()
		}
		if r.AmountMax.Valid {
			max = r.AmountMax.Decimal.String()
		}
		_ = w.Write([]string{
			r.ID, categoryName, string(r.Field), string(r.Strategy), r.Pattern,
			min, max, strconv.Itoa(r.Priority),
			strconv.FormatBool(r.CaseSensitive), strconv.FormatBool(r.Enabled),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

// ImportRulesCSV upserts rules by identifier from a previously exported
// snapshot. Categories are resolved by name and must already exist (run
// the category import first). Rows with an unknown category are skipped.
func (s *snapshotService) ImportRulesCSV(r io.Reader) (int, error) {
	records, index, err := readSnapshot(r, []string{"category", "field", "strategy", "pattern"})
	if err != nil {
		return 0, err
	}

	applied := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range records {
			field := models.RuleField(index.cell(row, "field"))
			strategy := models.MatchStrategy(index.cell(row, "strategy"))
			pattern := index.cell(row, "pattern")
			if !field.Valid() || !strategy.Valid() || strings.TrimSpace(pattern) == "" {
				continue
			}

			var category models.Category
			err := tx.Where("name = ?", index.cell(row, "category")).First(&category).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			fields := map[string]interface{}{
				"category_id":    category.ID,
				"field":          field,
				"strategy":       strategy,
				"pattern":        pattern,
				"priority":       models.DefaultRulePriority,
				"case_sensitive": index.cell(row, "case_sensitive") == "true",
				"enabled":        index.cell(row, "enabled") != "false",
				"amount_min":     decimal.NullDecimal{},
				"amount_max":     decimal.NullDecimal{},
			}
			if p, err := strconv.Atoi(strings.TrimSpace(index.cell(row, "priority"))); err == nil {
				fields["priority"] = p
			}
			if raw := strings.TrimSpace(index.cell(row, "amount_min")); raw != "" {
				if min, err := decimal.NewFromString(raw); err == nil {
					fields["amount_min"] = decimal.NewNullDecimal(min)
				}
			}
			if raw := strings.TrimSpace(index.cell(row, "amount_max")); raw != "" {
				if max, err := decimal.NewFromString(raw); err == nil {
					fields["amount_max"] = decimal.NewNullDecimal(max)
				}
			}

			id := strings.TrimSpace(index.cell(row, "id"))
			var existing models.Rule
			err = tx.Where("id = ?", id).First(&existing).Error
			switch {
			case id == "" || errors.Is(err, gorm.ErrRecordNotFound):
				rule := models.Rule{CategoryID: category.ID, Field: field, Strategy: strategy, Pattern: pattern}
				rule.ID = id
				if err := tx.Create(&rule).Error; err != nil {
					return err
				}
				if err := tx.Model(&rule).Updates(fields).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&existing).Updates(fields).Error; err != nil {
					return err
				}
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return applied, nil
}

// SyncUp exports both tables and uploads them, returning the object names
// written.
func (s *snapshotService) SyncUp(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, apperrors.ErrSnapshotNotConfigured
	}

	categories, err := s.ExportCategoriesCSV()
	if err != nil {
		return nil, err
	}
	rules, err := s.ExportRulesCSV()
	if err != nil {
		return nil, err
	}

	if err := s.store.Upload(ctx, categoriesObject, categories); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := s.store.Upload(ctx, rulesObject, rules); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return []string{categoriesObject, rulesObject}, nil
}

// SyncDown downloads and imports both snapshots, categories first so rule
// rows can resolve their category names. Missing remote objects are
// skipped.
func (s *snapshotService) SyncDown(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, apperrors.ErrSnapshotNotConfigured
	}

	var imported []string
	if data, found, err := s.store.Download(ctx, categoriesObject); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	} else if found {
		if _, err := s.ImportCategoriesCSV(bytes.NewReader(data)); err != nil {
			return nil, err
		}
		imported = append(imported, categoriesObject)
	}
	if data, found, err := s.store.Download(ctx, rulesObject); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	} else if found {
		if _, err := s.ImportRulesCSV(bytes.NewReader(data)); err != nil {
			return nil, err
		}
		imported = append(imported, rulesObject)
	}
	return imported, nil
}

// columnIndex maps snapshot header names to their positions.
type columnIndex map[string]int

func (ci columnIndex) cell(row []string, name string) string {
	i, ok := ci[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// readSnapshot parses a snapshot CSV and checks its header for the
// required columns, returning the data rows and a column index.
func readSnapshot(r io.Reader, required []string) ([][]string, columnIndex, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed snapshot CSV: "+err.Error())
	}
	if len(records) == 0 {
		return nil, nil, apperrors.ErrEmptyDataset
	}

	header := records[0]
	index := make(columnIndex, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, apperrors.NewSchemaError(missing, header)
	}
	return records[1:], index, nil
}
