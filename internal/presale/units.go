// internal/presale/units.go
package presale

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the number of fractional digits of the chain's native unit.
const NativeDecimals int32 = 18

// maxAmountLength bounds the textual amount before any arithmetic.
const maxAmountLength = 96

// maxAmountBits is the width of the chain's value field.
const maxAmountBits = 256

// ParseDecimal parses a positive amount in plain decimal notation.
// Exponent notation and overlong input are rejected so callers never
// expand an attacker-chosen exponent.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLength || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseAmount converts a decimal string in the native unit into its base
// unit integer. Only positive amounts that fit in 256 bits pass.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	d, err := ParseDecimal(s)
	if err != nil {
		return nil, err
	}
	base := d.Shift(decimals)
	if !base.Equal(base.Truncate(0)) {
		return nil, ErrTooPrecise
	}
	value := base.BigInt()
	if value.BitLen() > maxAmountBits {
		return nil, ErrInvalidAmount
	}
	return value, nil
}

// ToDecimal converts a base unit integer into the native unit.
func ToDecimal(base *big.Int, decimals int32) decimal.Decimal {
	if base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(base, -decimals)
}

// FormatAmount renders a base unit integer with at most places fractional
// digits, trailing zeros trimmed.
func FormatAmount(base *big.Int, decimals int32, places int32) string {
	return ToDecimal(base, decimals).Truncate(places).String()
}
