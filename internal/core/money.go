// Package core provides money parsing and handling utilities.
//
// Amounts are signed decimals. Credit notes and corrections may be negative,
// so unlike a shopping list a zero or negative amount is a valid value.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a signed monetary value in euros.
type Amount = decimal.Decimal

// Zero is the zero amount.
var Zero = decimal.Zero

// ParseAmount converts user input into an Amount.
//
// It accepts dot (12.34) and comma (12,34) decimal separators. When both are
// present the German convention applies: "1.234,56" is 1234.56. A leading
// sign and a trailing euro symbol are tolerated.
//
// Examples:
//
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("-40")      -> -40
//	ParseAmount("1.234,56") -> 1234.56
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "€")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.ContainsAny(s, ",eE") {
		return Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(a Amount) Amount {
	return a.Round(2)
}
