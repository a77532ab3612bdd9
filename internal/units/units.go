// Package units converts between human denominations and wei.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

const (
	Wei   int32 = 0
	Gwei  int32 = 9
	Ether int32 = 18

	// maxDigits is the decimal length of 2^256.
	maxDigits = 78
)

var (
	ErrNegative   = errors.New("amount is negative")
	ErrFractional = errors.New("amount has more decimals than the unit allows")
	ErrTooLarge   = errors.New("amount does not fit in 256 bits")
)

// ParseUnits parses a decimal string such as "1.5" and scales it by
// 10^decimals.
func ParseUnits(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, ErrNegative
	}
	if d.IsZero() {
		return new(uint256.Int), nil
	}
	// Bound the scale before Shift, which materialises 10^exp.
	exp := int64(d.Exponent()) + int64(decimals)
	if exp >= maxDigits {
		return nil, ErrTooLarge
	}
	if -exp > int64(d.NumDigits()) {
		return nil, ErrFractional
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, ErrFractional
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrTooLarge
	}
	return v, nil
}

func FormatUnits(v *uint256.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -decimals).String()
}

func FormatEther(v *uint256.Int) string { return FormatUnits(v, Ether) }

// Decimals maps a unit name (wei, gwei, ether) to its exponent.
func Decimals(unit string) (int32, error) {
	switch strings.ToLower(unit) {
	case "", "wei":
		return Wei, nil
	case "gwei":
		return Gwei, nil
	case "eth", "ether":
		return Ether, nil
	}
	return 0, fmt.Errorf("unknown unit %q", unit)
}

// Parse parses s in the named unit.
func Parse(s, unit string) (*uint256.Int, error) {
	decimals, err := Decimals(unit)
	if err != nil {
		return nil, err
	}
	return ParseUnits(s, decimals)
}
