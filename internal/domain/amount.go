/**
 * @description
 * Amount conversion helpers for the API edge. Clients exchange amounts as
 * two-decimal strings ("200.00"); internally every balance and record amount
 * is an int64 count of minor units.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal parsing; avoids binary
 *   floating point on the money path.
 */

package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount reports an amount string that is not a decimal number
// with at most two fraction digits.
var ErrMalformedAmount = errors.New("amount must be a decimal with at most two fraction digits")

// ParseAmount converts a decimal amount string into minor units.
// "200", "200.5" and "200.50" all parse to 20050. Sign is preserved;
// positivity is an engine-level rule, not a parsing rule. Values whose
// minor-unit count does not fit in an int64 are rejected rather than
// truncated.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrMalformedAmount
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, ErrMalformedAmount
	}
	if !cents.BigInt().IsInt64() {
		return 0, ErrMalformedAmount
	}
	return cents.IntPart(), nil
}

// FormatAmount renders minor units as a two-decimal string.
func FormatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}
