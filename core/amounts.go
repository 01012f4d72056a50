package core

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// CheckedSub returns a-b, or ErrInsufficientBalance if b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, a, b)
	}
	return diff, nil
}

// AmountToDecimal converts an integer amount in base units into a decimal value with the given
// number of fractional digits (e.g. 1_500_000 with 6 decimals is 1.5).
func AmountToDecimal(amount uint64, decimals int32) decimal.Decimal {
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
}

// FormatAmount renders an integer amount in base units with exactly `decimals` fractional digits.
func FormatAmount(amount uint64, decimals int32) string {
	if decimals < 0 {
		decimals = 0
	}
	return AmountToDecimal(amount, decimals).StringFixed(decimals)
}

// ParseAmount converts a human-readable decimal string into base units.
// Amounts with more fractional digits than `decimals`, negative amounts and amounts
// that do not fit in 64 bits are rejected.
func ParseAmount(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, decimals)
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return bi.Uint64(), nil
}
