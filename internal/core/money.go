// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between decimals and the integer cents the stores persist.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("enter a valid amount")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrAmountPrecision = errors.New("amount cannot have more than 2 decimal places")
	ErrAmountTooLarge  = errors.New("amount cannot have more than 8 digits before the decimal point")
)

// MaxAmount is the largest storable amount (10 digits, 2 of them fractional).
var MaxAmount = decimal.RequireFromString("99999999.99")

// ParseAmount converts a decimal string to an exact amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike a
// float parse it never rounds: input with sub-cent precision is rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,30")  -> 12.3, nil
//	ParseAmount("12.345") -> error (precision)
//	ParseAmount("-1")     -> error (negative)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	// decimal accepts exponents ("1e3"); a money field does not.
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount enforces the non-negativity, precision and magnitude rules.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	if !d.Equal(d.Truncate(2)) {
		return ErrAmountPrecision
	}
	if d.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// ToCents converts an amount with at most two decimals to integer cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// FromCents converts integer cents back to an exact decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatAmount renders an amount with exactly two decimals ("1000.00").
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
