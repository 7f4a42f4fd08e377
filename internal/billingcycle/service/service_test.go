package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik/mikrotiktest"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var asOf = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type subscriptions struct {
	subscriptiondomain.Service
	mock.Mock
}

func (m *subscriptions) ListBillable(ctx context.Context, at time.Time) ([]*subscriptiondomain.Subscription, error) {
	args := m.Called(ctx, at)
	return args.Get(0).([]*subscriptiondomain.Subscription), args.Error(1)
}

func (m *subscriptions) ListPastBillingDay(ctx context.Context, at time.Time) ([]*subscriptiondomain.Subscription, error) {
	args := m.Called(ctx, at)
	return args.Get(0).([]*subscriptiondomain.Subscription), args.Error(1)
}

func (m *subscriptions) SuspendForNonPayment(ctx context.Context, id snowflake.ID, reason string) (*subscriptiondomain.ActionResult, error) {
	args := m.Called(ctx, id, reason)
	res, _ := args.Get(0).(*subscriptiondomain.ActionResult)
	return res, args.Error(1)
}

type bills struct {
	billingdomain.Service
	mock.Mock
}

func (m *bills) GenerateBill(ctx context.Context, id snowflake.ID, at time.Time) (*billingdomain.GenerateOutcome, error) {
	args := m.Called(ctx, id, at)
	out, _ := args.Get(0).(*billingdomain.GenerateOutcome)
	return out, args.Error(1)
}

func (m *bills) FindBillForPeriod(ctx context.Context, id snowflake.ID, year, month int) (*billingdomain.Bill, error) {
	args := m.Called(ctx, id, year, month)
	bill, _ := args.Get(0).(*billingdomain.Bill)
	return bill, args.Error(1)
}

func (m *bills) MarkOverdue(ctx context.Context, id snowflake.ID) (*billingdomain.Bill, error) {
	args := m.Called(ctx, id)
	bill, _ := args.Get(0).(*billingdomain.Bill)
	return bill, args.Error(1)
}

type routers struct {
	routerdomain.Service
	items []*routerdomain.Router
}

func (r *routers) List(context.Context, bool) ([]*routerdomain.Router, error) {
	return r.items, nil
}

type fixture struct {
	svc     *Service
	subs    *subscriptions
	bills   *bills
	routers *routers
	gw      *mikrotiktest.Gateway
	metrics *observability.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		subs:    &subscriptions{},
		bills:   &bills{},
		routers: &routers{},
		gw:      &mikrotiktest.Gateway{},
		metrics: observability.NewNopMetrics(),
	}
	f.svc = New(Params{
		Log:           zap.NewNop(),
		Subscriptions: f.subs,
		Bills:         f.bills,
		Routers:       f.routers,
		Gateway:       f.gw,
		Metrics:       f.metrics,
	}).(*Service)
	return f
}

func sub(id int64, day int) *subscriptiondomain.Subscription {
	return &subscriptiondomain.Subscription{ID: snowflake.ID(id), BillingDay: day, Status: subscriptiondomain.StatusActive}
}

func TestRunBillingCycleCountsAndIsolates(t *testing.T) {
	f := newFixture()
	f.subs.On("ListBillable", mock.Anything, asOf).Return([]*subscriptiondomain.Subscription{
		sub(1, 10), sub(2, 10), sub(3, 10), sub(4, 10), sub(5, 10),
	}, nil)
	f.bills.On("GenerateBill", mock.Anything, snowflake.ID(1), asOf).Return(&billingdomain.GenerateOutcome{Created: true}, nil)
	f.bills.On("GenerateBill", mock.Anything, snowflake.ID(2), asOf).Return(&billingdomain.GenerateOutcome{Created: true, AutoPaid: true}, nil)
	f.bills.On("GenerateBill", mock.Anything, snowflake.ID(3), asOf).Return(&billingdomain.GenerateOutcome{}, nil)
	f.bills.On("GenerateBill", mock.Anything, snowflake.ID(4), asOf).Return(nil, errors.New("database is locked"))
	f.bills.On("GenerateBill", mock.Anything, snowflake.ID(5), asOf).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(nil, nil)

	summary, err := f.svc.RunBillingCycle(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Candidates)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.AutoPaid)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Errors)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, snowflake.ID(4), summary.Failures[0].ID)
	assert.Contains(t, summary.Failures[1].Error, "boom")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CycleResults.WithLabelValues(entryBillingCycle, "created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CycleResults.WithLabelValues(entryBillingCycle, "error")))
}

func TestEvaluateSuspensions(t *testing.T) {
	f := newFixture()
	f.subs.On("ListPastBillingDay", mock.Anything, asOf).Return([]*subscriptiondomain.Subscription{
		sub(1, 5), sub(2, 5), sub(3, 5), sub(4, 5), sub(5, 5),
	}, nil)

	pending := &billingdomain.Bill{ID: 11, BillNumber: "BILL-2025-03-0001", Status: ledger.BillStatusPending}
	overdue := &billingdomain.Bill{ID: 12, BillNumber: "BILL-2025-03-0002", Status: ledger.BillStatusOverdue}
	paid := &billingdomain.Bill{ID: 13, BillNumber: "BILL-2025-03-0003", Status: ledger.BillStatusPaid}
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(1), 2025, 3).Return(pending, nil)
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(2), 2025, 3).Return(overdue, nil)
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(3), 2025, 3).Return(paid, nil)
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(4), 2025, 3).Return(nil, nil)
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(5), 2025, 3).Return(nil, errors.New("timeout"))

	f.subs.On("SuspendForNonPayment", mock.Anything, snowflake.ID(1), mock.Anything).
		Return(&subscriptiondomain.ActionResult{RouterAttempted: true, RouterSuccess: true}, nil)
	f.subs.On("SuspendForNonPayment", mock.Anything, snowflake.ID(2), mock.Anything).
		Return(&subscriptiondomain.ActionResult{RouterAttempted: true, RouterMessage: "Failed to connect to router"}, nil)
	f.bills.On("MarkOverdue", mock.Anything, pending.ID).Return(pending, nil)

	summary, err := f.svc.EvaluateSubscriptionSuspensions(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Checked)
	assert.Equal(t, 2, summary.Suspended)
	assert.Equal(t, 1, summary.RouterFailed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.IntegrityWarnings)
	assert.Equal(t, 1, summary.Errors)

	f.bills.AssertCalled(t, "MarkOverdue", mock.Anything, pending.ID)
	f.bills.AssertNotCalled(t, "MarkOverdue", mock.Anything, overdue.ID)
	f.subs.AssertNotCalled(t, "SuspendForNonPayment", mock.Anything, snowflake.ID(3), mock.Anything)
	f.subs.AssertNotCalled(t, "SuspendForNonPayment", mock.Anything, snowflake.ID(4), mock.Anything)
}

func TestEvaluateSuspensionsSkipsAlreadySuspended(t *testing.T) {
	f := newFixture()
	f.subs.On("ListPastBillingDay", mock.Anything, asOf).Return([]*subscriptiondomain.Subscription{sub(1, 5)}, nil)
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(1), 2025, 3).
		Return(&billingdomain.Bill{ID: 11, Status: ledger.BillStatusPartial}, nil)
	f.subs.On("SuspendForNonPayment", mock.Anything, snowflake.ID(1), mock.Anything).
		Return(nil, subscriptiondomain.ErrAlreadySuspended)

	summary, err := f.svc.EvaluateSubscriptionSuspensions(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Errors)
	f.bills.AssertNotCalled(t, "MarkOverdue", mock.Anything, mock.Anything)
}

func TestEvaluateSuspensionsCountsSuspensionWhenBillUpdateFails(t *testing.T) {
	f := newFixture()
	f.subs.On("ListPastBillingDay", mock.Anything, asOf).Return([]*subscriptiondomain.Subscription{sub(1, 5)}, nil)
	pending := &billingdomain.Bill{ID: 11, BillNumber: "BILL-2025-03-0001", Status: ledger.BillStatusPending}
	f.bills.On("FindBillForPeriod", mock.Anything, snowflake.ID(1), 2025, 3).Return(pending, nil)
	f.subs.On("SuspendForNonPayment", mock.Anything, snowflake.ID(1), mock.Anything).
		Return(&subscriptiondomain.ActionResult{RouterAttempted: true, RouterSuccess: true}, nil)
	f.bills.On("MarkOverdue", mock.Anything, pending.ID).Return(nil, errors.New("database is locked"))

	summary, err := f.svc.EvaluateSubscriptionSuspensions(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Suspended)
	assert.Zero(t, summary.Errors)
	assert.Empty(t, summary.Failures)
	f.bills.AssertCalled(t, "MarkOverdue", mock.Anything, pending.ID)
}

func TestCheckRouters(t *testing.T) {
	f := newFixture()
	up := &routerdomain.Router{ID: 1, Name: "core-1"}
	down := &routerdomain.Router{ID: 2, Name: "edge-2"}
	f.routers.items = []*routerdomain.Router{up, down}
	f.gw.On("TestConnection", mock.Anything, up).Return(mikrotiktest.OK(routerdomain.SyncActionTestConnection, ""))
	f.gw.On("TestConnection", mock.Anything, down).Return(mikrotiktest.Fail(routerdomain.SyncActionTestConnection, "Failed to connect to router: i/o timeout"))

	summary, err := f.svc.CheckRouters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Online)
	assert.Equal(t, 1, summary.Offline)
	require.Len(t, summary.Down, 1)
	assert.Equal(t, down.ID, summary.Down[0].ID)
}
