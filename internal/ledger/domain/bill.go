package domain

import "github.com/shopspring/decimal"

type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPartial   BillStatus = "partial"
	BillStatusPaid      BillStatus = "paid"
	BillStatusOverdue   BillStatus = "overdue"
	BillStatusCancelled BillStatus = "cancelled"
)

// Unsettled reports whether the status still blocks service.
func (s BillStatus) Unsettled() bool {
	switch s {
	case BillStatusPending, BillStatusPartial, BillStatusOverdue:
		return true
	}
	return false
}

// BillAmounts is the money part of a bill. Total, Due and Status are derived.
type BillAmounts struct {
	PackagePrice decimal.Decimal
	OtherCharges decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	Paid         decimal.Decimal
	Due          decimal.Decimal
	Status       BillStatus
}

// RecomputeBill derives Total, Due and Status from the inputs. Every path that
// touches a bill's money goes through here.
//
//	total = package_price + other_charges - discount
//	due   = total - paid
//
// Cancelled is sticky. Overdue survives until the bill is fully paid.
func RecomputeBill(in BillAmounts) BillAmounts {
	out := in
	out.Total = Round(in.PackagePrice.Add(in.OtherCharges).Sub(in.Discount))
	out.Paid = Round(in.Paid)
	out.Due = out.Total.Sub(out.Paid)

	switch {
	case in.Status == BillStatusCancelled:
		out.Status = BillStatusCancelled
	case out.Paid.GreaterThanOrEqual(out.Total):
		out.Status = BillStatusPaid
	case in.Status == BillStatusOverdue:
		out.Status = BillStatusOverdue
	case out.Paid.IsPositive():
		out.Status = BillStatusPartial
	default:
		out.Status = BillStatusPending
	}
	return out
}

// ValidateBillComponents rejects negative inputs and discounts larger than the charges.
func ValidateBillComponents(packagePrice, otherCharges, discount decimal.Decimal) error {
	if packagePrice.IsNegative() || otherCharges.IsNegative() || discount.IsNegative() {
		return ErrNegativeComponent
	}
	if discount.GreaterThan(packagePrice.Add(otherCharges)) {
		return ErrDiscountTooLarge
	}
	return nil
}
