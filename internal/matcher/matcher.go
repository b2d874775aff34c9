// Package matcher evaluates a single rule against a single transaction.
// It is pure: no storage access, no side effects, and a malformed rule
// can only ever produce a non-match, never an error.
package matcher

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"atelier/internal/canon"
	"atelier/internal/models"
)

// FuzzyThreshold is the minimum similarity ratio (0-100) for a fuzzy rule
// to match. Fixed by design, not configurable per rule.
const FuzzyThreshold = 90.0

// Candidate is a transaction's matchable view: the raw text fields (regex
// runs against these), their canonical forms, and the signed amount.
type Candidate struct {
	Counterparty     string
	Reference        string
	CounterpartyNorm string
	ReferenceNorm    string
	Amount           decimal.Decimal
}

// NewCandidate builds a Candidate from a transaction, canonicalizing the
// text fields.
func NewCandidate(tx *models.Transaction) Candidate {
	return Candidate{
		Counterparty:     tx.Counterparty,
		Reference:        tx.Reference,
		CounterpartyNorm: canon.Normalize(tx.Counterparty),
		ReferenceNorm:    canon.Normalize(tx.Reference),
		Amount:           tx.Amount,
	}
}

// Matches reports whether the rule matches the candidate under the rule's
// field, strategy, case sensitivity, and amount bounds. An empty field
// value never matches; an unknown field or strategy never matches (both
// are rejected at the validation boundary, so reaching the fallthrough
// here means stored data predates the closed sets).
func Matches(rule *models.Rule, c Candidate) bool {
	var raw, value string
	switch rule.Field {
	case models.FieldCounterparty:
		raw, value = c.Counterparty, c.CounterpartyNorm
	case models.FieldReference:
		raw, value = c.Reference, c.ReferenceNorm
	default:
		return false
	}
	if value == "" {
		return false
	}
	if !withinBounds(rule, c.Amount) {
		return false
	}

	pattern := rule.Pattern
	if !rule.CaseSensitive {
		pattern = canon.Normalize(pattern)
	} else {
		pattern = strings.TrimSpace(pattern)
	}

	switch rule.Strategy {
	case models.StrategyExact:
		return value == pattern
	case models.StrategyContains:
		return strings.Contains(value, pattern)
	case models.StrategyRegex:
		return regexMatch(rule.Pattern, rule.CaseSensitive, raw)
	case models.StrategyFuzzy:
		return Ratio(value, pattern) >= FuzzyThreshold
	}
	return false
}

// regexMatch compiles the pattern (case-insensitive unless the rule is
// case-sensitive) against the raw field value. A pattern that fails to
// compile is a non-match so one bad rule cannot abort an evaluation run.
func regexMatch(pattern string, caseSensitive bool, raw string) bool {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(raw)
}

// withinBounds checks the rule's optional inclusive amount bounds.
func withinBounds(rule *models.Rule, amount decimal.Decimal) bool {
	if rule.AmountMin.Valid && amount.LessThan(rule.AmountMin.Decimal) {
		return false
	}
	if rule.AmountMax.Valid && amount.GreaterThan(rule.AmountMax.Decimal) {
		return false
	}
	return true
}

// fuzzyOptions weighs a substitution as a deletion plus an insertion, so
// the ratio lines up with the usual normalized indel similarity.
var fuzzyOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 2,
	Matches: levenshtein.IdenticalRunes,
}

// Ratio returns the similarity of a and b scaled to 0-100.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), fuzzyOptions) * 100
}
