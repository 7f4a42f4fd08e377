package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

// Explain breaks an invoice down into the lines that make up its bill total.
func (s *Service) Explain(ctx context.Context, invoiceID snowflake.ID) (*domain.Explanation, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	bill, err := s.bills.GetBill(ctx, invoice.BillID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.Get(ctx, bill.SubscriptionID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, sub.CustomerID)
	if err != nil {
		return nil, err
	}
	pkg, err := s.packages.Get(ctx, sub.PackageID)
	if err != nil {
		return nil, err
	}

	period := fmt.Sprintf("%s %d", time.Month(bill.BillingMonth).String(), bill.BillingYear)
	lines := []domain.ExplanationLine{{
		Description: fmt.Sprintf("%s (%s)", pkg.Name, period),
		Amount:      bill.PackagePrice,
	}}
	if bill.OtherCharges.IsPositive() {
		lines = append(lines, domain.ExplanationLine{Description: "Other charges", Amount: bill.OtherCharges})
	}
	if bill.Discount.IsPositive() {
		lines = append(lines, domain.ExplanationLine{Description: "Discount", Amount: decimal.Zero.Sub(bill.Discount)})
	}

	return &domain.Explanation{
		InvoiceNumber: invoice.InvoiceNumber,
		IssueDate:     invoice.IssueDate,
		BillNumber:    bill.BillNumber,
		Period:        period,
		DueDate:       bill.DueDate,
		CustomerCode:  customer.Code,
		CustomerName:  customer.Name,
		Address:       customer.Address,
		PackageName:   pkg.Name,
		Lines:         lines,
		Total:         bill.TotalAmount,
		Paid:          bill.PaidAmount,
		Due:           bill.DueAmount,
		Status:        bill.Status,
	}, nil
}
