// Package fingerprint derives the stable deduplication identity of a
// transaction from its defining fields.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayout is ISO 8601 at seconds precision. Statement exports carry no
// sub-second or zone information, and the layout must never change: it is
// part of every stored fingerprint.
const timeLayout = "2006-01-02T15:04:05"

// delimiter joins the fields; it cannot occur in canonicalized text or in
// the fixed-format timestamp and amount.
const delimiter = "|"

// Compute returns the 40-char lowercase hex SHA-1 over the transaction's
// defining fields: completion time, amount at exactly two decimals, and
// the already-canonicalized counterparty and reference (empty string when
// the reference is absent). Rows with identical defining fields always get
// identical fingerprints, regardless of which batch they arrived in.
func Compute(completedAt time.Time, amount decimal.Decimal, counterpartyNorm, referenceNorm string) string {
	joined := strings.Join([]string{
		completedAt.Format(timeLayout),
		amount.StringFixed(2),
		counterpartyNorm,
		referenceNorm,
	}, delimiter)
	sum := sha1.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}
