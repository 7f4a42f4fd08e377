package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientAdvance = errors.New("insufficient_advance_balance")
	ErrNonPositiveDraw     = errors.New("advance_draw_not_positive")
)

// AdvanceBalance is amount - used.
func AdvanceBalance(amount, used decimal.Decimal) decimal.Decimal {
	return Round(amount.Sub(used))
}

// DrawAdvance returns the new used amount after consuming draw from an advance.
// used never decreases and never passes amount.
func DrawAdvance(amount, used, draw decimal.Decimal) (decimal.Decimal, error) {
	if !draw.IsPositive() {
		return used, ErrNonPositiveDraw
	}
	next := used.Add(draw)
	if next.GreaterThan(amount) {
		return used, ErrInsufficientAdvance
	}
	return Round(next), nil
}

// Covers reports whether the remaining balance can pay price in full.
func Covers(amount, used, price decimal.Decimal) bool {
	return AdvanceBalance(amount, used).GreaterThanOrEqual(price)
}
