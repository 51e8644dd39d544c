// Package numeric holds the decimal and integer helpers shared by the reducers.
package numeric

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by Ratio.
const DivisionPrecision = 20

var ErrDivisionByZero = errors.New("division by zero")

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ParseBigInt parses a signed base-10 integer. An empty string is zero.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

// ParseUint128 parses an unsigned integer that must fit in 128 bits.
func ParseUint128(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("empty integer")
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 || parsed.Cmp(maxUint128) > 0 {
		return nil, fmt.Errorf("integer out of u128 range: %s", value)
	}
	return parsed, nil
}

// ParseDecimal parses a decimal string. An empty string is zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", value, err)
	}
	return d, nil
}

// FromInt converts an integer amount to a decimal without loss.
func FromInt(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, 0)
}

// Ratio returns num/den rounded half-up to DivisionPrecision digits.
func Ratio(num, den *big.Int) (decimal.Decimal, error) {
	if den == nil || den.Sign() == 0 {
		return decimal.Zero, ErrDivisionByZero
	}
	return FromInt(num).DivRound(FromInt(den), DivisionPrecision), nil
}

// FormatTotal renders an aggregate total with at least one fractional
// digit, so zero is "0.0" and fifty is "50.0".
func FormatTotal(d decimal.Decimal) string {
	text := d.String()
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}

// FormatPrice renders a spot price with trailing zeros trimmed.
func FormatPrice(d decimal.Decimal) string {
	return d.String()
}
