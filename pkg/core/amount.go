package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// MaxAmountDigits bounds the digits of any amount or price the engine accepts.
// It comfortably covers a u128 rune supply.
const MaxAmountDigits = 78

// ParseAmount parses a non-negative integer quantity or price written in plain
// decimal notation. Exponent notation and inputs longer than MaxAmountDigits
// are refused before any arithmetic happens.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q uses exponent notation", ErrInvalidAmount, s)
	}
	if len(s) > MaxAmountDigits {
		return decimal.Zero, fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidAmount, s, MaxAmountDigits)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse %q: %w", ErrInvalidAmount, s, err)
	}
	if !IsWholeAmount(d) {
		return decimal.Zero, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidAmount, s)
	}
	return d, nil
}

// InAmountRange reports whether d fits in MaxAmountDigits digits, both in its
// integer part and in its scale. Values outside it are too costly to compare.
func InAmountRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	return exp >= -MaxAmountDigits && int64(d.NumDigits())+exp <= MaxAmountDigits
}

// IsWholeAmount reports whether d is a non-negative integer
func IsWholeAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Truncate(0))
}

// minAmount returns the smaller of a and b
func minAmount(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// midPrice is the floor of the arithmetic mean of the two prices.
func midPrice(bid, ask decimal.Decimal) decimal.Decimal {
	q, _ := bid.Add(ask).QuoRem(two, 0)
	return q
}
