package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
)

// Service holds the batch entry points driven by the scheduler. Every entry
// point is safe to repeat for the same date and isolates per-item failures.
type Service interface {
	RunBillingCycle(ctx context.Context, asOf time.Time) (*CycleSummary, error)
	EvaluateSubscriptionSuspensions(ctx context.Context, asOf time.Time) (*SuspensionSummary, error)
	SweepOverdue(ctx context.Context, asOf time.Time) (*billingdomain.SweepSummary, error)
	CheckRouters(ctx context.Context) (*RouterHealthSummary, error)
}

type ItemFailure struct {
	ID    snowflake.ID `json:"id"`
	Error string       `json:"error"`
}

type CycleSummary struct {
	AsOf       time.Time     `json:"as_of"`
	Candidates int           `json:"candidates"`
	Created    int           `json:"created"`
	AutoPaid   int           `json:"auto_paid"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	Failures   []ItemFailure `json:"failures,omitempty"`
}

type SuspensionSummary struct {
	AsOf              time.Time     `json:"as_of"`
	Checked           int           `json:"checked"`
	Suspended         int           `json:"suspended"`
	RouterFailed      int           `json:"router_failed"`
	Skipped           int           `json:"skipped"`
	IntegrityWarnings int           `json:"integrity_warnings"`
	Errors            int           `json:"errors"`
	Failures          []ItemFailure `json:"failures,omitempty"`
}

type RouterHealthSummary struct {
	Checked int           `json:"checked"`
	Online  int           `json:"online"`
	Offline int           `json:"offline"`
	Down    []ItemFailure `json:"down,omitempty"`
}
