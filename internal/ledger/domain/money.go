package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

var (
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrAmountTooPrecise  = errors.New("amount_too_precise")
	ErrAmountNotPositive = errors.New("amount_not_positive")
	ErrAmountExceedsDue  = errors.New("amount_exceeds_due")
	ErrNegativeComponent = errors.New("negative_amount_component")
	ErrDiscountTooLarge  = errors.New("discount_exceeds_charges")
)

// Round rounds half away from zero to Scale places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ParseAmount parses a decimal string and rejects sub-cent precision.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(Scale)) {
		return decimal.Zero, ErrAmountTooPrecise
	}
	return d, nil
}

// MustAmount is ParseAmount for constants and tests.
func MustAmount(raw string) decimal.Decimal {
	d, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// ValidatePayment checks a payment against the outstanding balance of a bill.
func ValidatePayment(amount, due decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if !amount.Equal(amount.Truncate(Scale)) {
		return ErrAmountTooPrecise
	}
	if amount.GreaterThan(due) {
		return ErrAmountExceedsDue
	}
	return nil
}
