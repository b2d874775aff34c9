package models

import "github.com/shopspring/decimal"

// MatchStrategy is the closed set of rule matching strategies. Strategy
// precedence during classification is exact, contains, regex, fuzzy.
type MatchStrategy string

const (
	StrategyExact    MatchStrategy = "exact"
	StrategyContains MatchStrategy = "contains"
	StrategyRegex    MatchStrategy = "regex"
	StrategyFuzzy    MatchStrategy = "fuzzy"
)

// Precedence returns the classification rank of the strategy; lower wins.
// Unknown strategies rank last and are rejected at the validation boundary.
func (s MatchStrategy) Precedence() int {
	switch s {
	case StrategyExact:
		return 0
	case StrategyContains:
		return 1
	case StrategyRegex:
		return 2
	case StrategyFuzzy:
		return 3
	}
	return 4
}

// Valid reports whether s is one of the declared strategies.
func (s MatchStrategy) Valid() bool {
	return s.Precedence() < 4
}

// RuleField selects which transaction text field a rule inspects.
type RuleField string

const (
	FieldCounterparty RuleField = "counterparty"
	FieldReference    RuleField = "reference"
)

// Valid reports whether f is one of the declared fields.
func (f RuleField) Valid() bool {
	return f == FieldCounterparty || f == FieldReference
}

// DefaultRulePriority is the priority assigned when a rule does not set one.
const DefaultRulePriority = 100

// Rule is a declarative matcher proposing a category for transactions.
type Rule struct {
	Base
	CategoryID    string              `gorm:"type:uuid;not null;index" json:"category_id"`
	Field         RuleField           `gorm:"size:20;not null" json:"field"`
	Strategy      MatchStrategy       `gorm:"size:20;not null" json:"strategy"`
	Pattern       string              `gorm:"not null" json:"pattern"`
	AmountMin     decimal.NullDecimal `gorm:"type:numeric" json:"amount_min"`
	AmountMax     decimal.NullDecimal `gorm:"type:numeric" json:"amount_max"`
	Priority      int                 `gorm:"not null;default:100" json:"priority"`
	CaseSensitive bool                `gorm:"not null;default:false" json:"case_sensitive"`
	Enabled       bool                `gorm:"not null;default:true" json:"enabled"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
