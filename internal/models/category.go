package models

import "github.com/shopspring/decimal"

// Category is a named spending bucket. Categories are soft-disabled via
// IsActive rather than deleted while rules or assignments reference them.
type Category struct {
	Base
	Name            string              `gorm:"size:120;not null;uniqueIndex" json:"name"`
	Description     string              `json:"description"`
	Comment         string              `json:"comment"`
	ThresholdAmount decimal.NullDecimal `gorm:"type:numeric" json:"threshold_amount"`
	IsActive        bool                `gorm:"not null;default:true" json:"is_active"`

	// Relationships
	Rules []Rule `gorm:"foreignKey:CategoryID" json:"rules,omitempty"`
}
