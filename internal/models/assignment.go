package models

import "time"

// AssignmentSource records how a classification came to be.
type AssignmentSource string

const (
	SourceRule   AssignmentSource = "rule"
	SourceManual AssignmentSource = "manual"
)

// Valid reports whether s is one of the declared sources.
func (s AssignmentSource) Valid() bool {
	return s == SourceRule || s == SourceManual
}

// Assignment is the current classification of exactly one transaction.
// Reclassification overwrites the row in place; the previous provenance
// is discarded.
type Assignment struct {
	Base
	TransactionID string           `gorm:"type:uuid;not null;uniqueIndex" json:"transaction_id"`
	CategoryID    string           `gorm:"type:uuid;not null;index" json:"category_id"`
	Source        AssignmentSource `gorm:"size:20;not null" json:"source"`
	RuleID        *string          `gorm:"type:uuid" json:"rule_id,omitempty"`
	AssignedAt    time.Time        `gorm:"not null" json:"assigned_at"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Rule     *Rule     `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
}
