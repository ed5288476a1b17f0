// Package decimals converts unsigned fixed-point integers, as returned by token contracts,
// into floating point amounts.
package decimals

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoConversion is returned when no conversion was requested: either the digit string is
// empty or the number of decimal places is zero. It is distinct from a converted zero.
var ErrNoConversion = errors.New("no conversion requested")

// ErrMalformedDigits is returned when the input contains anything other than ASCII digits.
var ErrMalformedDigits = errors.New("malformed digit string")

// Convert interprets digits as an unsigned integer scaled by 10^places and returns it as a float.
//
// The digit string is left-padded with zeros until it is longer than places, a decimal point is
// inserted places digits from the right and the result is parsed exactly before the single
// final conversion to float64, so 256-bit values keep full precision up to that point.
func Convert(digits string, places int) (float64, error) {
	if places == 0 || digits == "" {
		return 0, ErrNoConversion
	}
	if places < 0 {
		return 0, fmt.Errorf("negative decimal places: %d", places)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedDigits, digits)
		}
	}

	if len(digits) <= places {
		digits = strings.Repeat("0", places+1-len(digits)) + digits
	}
	point := len(digits) - places
	value, err := decimal.NewFromString(digits[:point] + "." + digits[point:])
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", digits, err)
	}

	f, _ := value.Float64()
	return f, nil
}

// FromBig converts a raw on-chain integer with the given number of decimal places.
func FromBig(raw *big.Int, places int) (float64, error) {
	if raw == nil {
		return 0, errors.New("nil integer")
	}
	if raw.Sign() < 0 {
		return 0, fmt.Errorf("negative integer: %s", raw)
	}
	return Convert(raw.String(), places)
}
