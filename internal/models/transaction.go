package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one statement row after ingestion. Financial fields are
// immutable once created; the fingerprint is the row's deduplication
// identity and is unique across all batches.
type Transaction struct {
	Base
	Fingerprint  string          `gorm:"size:40;not null;uniqueIndex" json:"fingerprint"`
	CompletedAt  time.Time       `gorm:"not null;index" json:"completed_at"`
	Counterparty string          `gorm:"not null" json:"counterparty"`
	Reference    string          `json:"reference"`
	Amount       decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	IsIncome     bool            `gorm:"not null;index" json:"is_income"`
	BatchID      *string         `gorm:"type:uuid" json:"batch_id,omitempty"`

	// Relationships
	Batch      *IngestionBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
	Assignment *Assignment     `gorm:"foreignKey:TransactionID" json:"assignment,omitempty"`
}
