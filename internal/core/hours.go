// Package core provides the domain model for the hour ledger: fixed-point
// hour quantities, ledger entries, timers with their cycles, and import plans.
//
// All hour math is done on int64 hundredths of an hour to avoid
// floating-point drift across many small entries.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Hours is a signed quantity of hours with two-decimal fixed-point precision.
type Hours struct {
	Centi int64 // hundredths of an hour
}

// ParseHours converts a decimal string to a fixed-point Hours value.
//
// It accepts both dot (2.50) and comma (2,50) decimal separators and an
// optional leading sign, and performs half-up rounding on the third decimal
// place. Returns an error for empty or non-numeric input.
//
// Examples:
//
//	ParseHours("2.5")    -> {250}, nil
//	ParseHours("-1,25")  -> {-125}, nil
//	ParseHours("0.005")  -> {1}, nil (rounds up)
func ParseHours(s string) (Hours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Hours{}, ErrInvalidQuantity
	}
	s = strings.ReplaceAll(s, ",", ".")

	negative := false
	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" || s == "." {
		return Hours{}, ErrInvalidQuantity
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Hours{}, ErrInvalidQuantity
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Hours{}, ErrInvalidQuantity
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Hours{}, ErrInvalidQuantity
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Hours{}, ErrInvalidQuantity
	}
	// Prevent overflow when scaling to hundredths
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Hours{}, ErrInvalidQuantity
	}

	// Take first two fractional digits; half-up rounding on the third
	var frac int64
	if len(fracPart) > 0 {
		frac = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			frac += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				frac++
			}
		}
	}

	centi := iv*100 + frac
	if negative {
		centi = -centi
	}
	return Hours{Centi: centi}, nil
}

// HoursFromSeconds converts a duration in whole seconds to Hours,
// half-up rounded to two decimals (3600s + 1800s -> 1.50).
func HoursFromSeconds(seconds int64) Hours {
	negative := seconds < 0
	if negative {
		seconds = -seconds
	}
	centi := (seconds*200 + 3600) / 7200
	if negative {
		centi = -centi
	}
	return Hours{Centi: centi}
}

// IsZero reports whether the quantity is exactly zero.
func (h Hours) IsZero() bool { return h.Centi == 0 }

// Abs returns the magnitude of the quantity.
func (h Hours) Abs() Hours {
	if h.Centi < 0 {
		return Hours{Centi: -h.Centi}
	}
	return h
}

// Neg returns the quantity with its sign flipped.
func (h Hours) Neg() Hours { return Hours{Centi: -h.Centi} }

// Add returns the exact sum of two quantities.
func (h Hours) Add(o Hours) Hours { return Hours{Centi: h.Centi + o.Centi} }

// String formats the quantity with exactly two decimal places ("7.00",
// "-1.50"), independent of any floating-point representation.
func (h Hours) String() string {
	centi := h.Centi
	sign := ""
	if centi < 0 {
		sign = "-"
		centi = -centi
	}
	return fmt.Sprintf("%s%d.%02d", sign, centi/100, centi%100)
}
