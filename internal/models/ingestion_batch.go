package models

// IngestionBatch is the audit record of one import call. It is written
// once with final counts and never mutated afterwards.
type IngestionBatch struct {
	Base
	Source       string `gorm:"size:255;not null" json:"source"`
	RowsIngested int    `gorm:"not null;default:0" json:"rows_ingested"`
	RowsSkipped  int    `gorm:"not null;default:0" json:"rows_skipped"`
}
