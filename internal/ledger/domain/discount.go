package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFlat       DiscountType = "flat"
)

var (
	ErrInvalidDiscountType  = errors.New("invalid_discount_type")
	ErrInvalidDiscountValue = errors.New("invalid_discount_value")
)

var hundred = decimal.NewFromInt(100)

// DiscountAmount computes the reduction a discount grants on base.
// Flat discounts are capped at base.
func DiscountAmount(kind DiscountType, value, base decimal.Decimal) (decimal.Decimal, error) {
	if value.IsNegative() || base.IsNegative() {
		return decimal.Zero, ErrInvalidDiscountValue
	}
	switch kind {
	case DiscountTypePercentage:
		if value.GreaterThan(hundred) {
			return decimal.Zero, ErrInvalidDiscountValue
		}
		return Round(base.Mul(value).Div(hundred)), nil
	case DiscountTypeFlat:
		return Round(decimal.Min(value, base)), nil
	default:
		return decimal.Zero, ErrInvalidDiscountType
	}
}
