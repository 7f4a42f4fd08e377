package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	billingrepo "github.com/railzwaylabs/ispbilling/internal/billing/repository"
	billingservice "github.com/railzwaylabs/ispbilling/internal/billing/service"
	billingcycledomain "github.com/railzwaylabs/ispbilling/internal/billingcycle/domain"
	billingcycleservice "github.com/railzwaylabs/ispbilling/internal/billingcycle/service"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/ispbilling/internal/customer/repository"
	customerservice "github.com/railzwaylabs/ispbilling/internal/customer/service"
	invoicerepo "github.com/railzwaylabs/ispbilling/internal/invoice/repository"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	"github.com/railzwaylabs/ispbilling/internal/migration"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik/mikrotiktest"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	productrepo "github.com/railzwaylabs/ispbilling/internal/product/repository"
	productservice "github.com/railzwaylabs/ispbilling/internal/product/service"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	routerrepo "github.com/railzwaylabs/ispbilling/internal/router/repository"
	routerservice "github.com/railzwaylabs/ispbilling/internal/router/service"
	"github.com/railzwaylabs/ispbilling/internal/security/vault"
	sequencerepo "github.com/railzwaylabs/ispbilling/internal/sequence/repository"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	subscriptionrepo "github.com/railzwaylabs/ispbilling/internal/subscription/repository"
	subscriptionservice "github.com/railzwaylabs/ispbilling/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// wallClock is a settable clock; an as-of date on the context still wins.
type wallClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *wallClock) Now(ctx context.Context) time.Time {
	if t, ok := clock.AsOfFromContext(ctx); ok {
		return t
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *wallClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = t
}

type harness struct {
	db        *gorm.DB
	clock     *wallClock
	gw        *mikrotiktest.Gateway
	customers customerdomain.Service
	packages  productdomain.Service
	routers   routerdomain.Service
	subs      subscriptiondomain.Service
	bills     billingdomain.Service
	cycle     billingcycledomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(context.Background(), db, zap.NewNop()))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	v, err := vault.NewFactory(vault.Config{Provider: "aes", Key: "integration"})
	require.NoError(t, err)

	log := zap.NewNop()
	cfg := config.Config{Billing: config.BillingConfig{GraceDays: 7}}
	clk := &wallClock{at: time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)}
	seq := sequencerepo.ProvideGenerator(sequencerepo.Provide())

	h := &harness{db: db, clock: clk, gw: &mikrotiktest.Gateway{}}
	h.customers = customerservice.New(customerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: customerrepo.Provide(), Sequence: seq,
	})
	h.packages = productservice.New(productservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide(),
	})
	h.routers = routerservice.New(routerservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg, Vault: v, Repo: routerrepo.Provide(),
	})
	h.subs = subscriptionservice.New(subscriptionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg,
		Repo:      subscriptionrepo.Provide(),
		Customers: h.customers,
		Packages:  h.packages,
		Routers:   h.routers,
		Gateway:   h.gw,
	})
	h.bills = billingservice.New(billingservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg,
		Repo:          billingrepo.Provide(),
		Sequences:     seq,
		Discounts:     invoicerepo.Provide(),
		Subscriptions: h.subs,
		Packages:      h.packages,
	})
	h.cycle = billingcycleservice.New(billingcycleservice.Params{
		Log:           log,
		Subscriptions: h.subs,
		Bills:         h.bills,
		Routers:       h.routers,
		Gateway:       h.gw,
		Metrics:       observability.NewNopMetrics(),
	})
	return h
}

// provisioned creates a customer on a 500.00 package with a router-backed PPPoE secret.
func (h *harness) provisioned(t *testing.T, billingDay int) *subscriptiondomain.Subscription {
	t.Helper()
	ctx := context.Background()

	h.gw.On("CreateQueueProfile", mock.Anything, mock.Anything, mock.Anything).
		Return(mikrotiktest.OK(routerdomain.SyncActionCreateQueue, "*Q1"))
	h.gw.On("CreatePPPProfile", mock.Anything, mock.Anything, mock.Anything).
		Return(mikrotiktest.OK(routerdomain.SyncActionCreateProfile, "*P1"))
	h.gw.On("CreatePPPoEUser", mock.Anything, mock.Anything, mock.Anything, false).
		Return(mikrotiktest.OK(routerdomain.SyncActionCreateUser, "*S1")).Once()

	customer, err := h.customers.Create(ctx, customerdomain.CreateRequest{Name: "Rahim", Phone: "+8801700000000", Address: "Mirpur 10"})
	require.NoError(t, err)
	pkg, err := h.packages.Create(ctx, productdomain.CreateRequest{
		Name: "Home 10", BandwidthDownload: 10, BandwidthUpload: 5, Price: ledger.MustAmount("500.00"),
	})
	require.NoError(t, err)
	router, err := h.routers.Create(ctx, routerdomain.CreateRequest{
		Name: "core-1", IPAddress: "10.0.0.1", Username: "api", Password: "pw",
	})
	require.NoError(t, err)

	sub, err := h.subs.Create(ctx, subscriptiondomain.CreateRequest{
		CustomerID: customer.ID,
		PackageID:  pkg.ID,
		RouterID:   &router.ID,
		BillingDay: billingDay,
	})
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.StatusActive, sub.Status)
	return sub
}

func (h *harness) syncLogs(t *testing.T, action routerdomain.SyncAction) []routerdomain.SyncLog {
	t.Helper()
	var logs []routerdomain.SyncLog
	require.NoError(t, h.db.Where("action = ?", action).Order("created_at ASC").Find(&logs).Error)
	return logs
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAutoDrawOnBillingDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.provisioned(t, 5)

	adv, err := h.bills.CreateAdvancePayment(ctx, billingdomain.CreateAdvanceRequest{
		SubscriptionID: sub.ID,
		Amount:         ledger.MustAmount("500.00"),
		PaymentMethod:  billingdomain.PaymentMethodCash,
	})
	require.NoError(t, err)
	require.True(t, adv.RemainingBalance.Equal(ledger.MustAmount("500.00")))

	summary, err := h.cycle.RunBillingCycle(ctx, day(5))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.AutoPaid)

	bill, err := h.bills.FindBillForPeriod(ctx, sub.ID, 2025, 1)
	require.NoError(t, err)
	require.NotNil(t, bill)
	assert.Equal(t, ledger.BillStatusPaid, bill.Status)
	assert.True(t, bill.PaidAmount.Equal(ledger.MustAmount("500.00")))
	assert.True(t, bill.DueAmount.IsZero())

	balance, err := h.bills.AdvanceBalance(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), balance.String())

	// A second run on the same day is a no-op.
	summary, err = h.cycle.RunBillingCycle(ctx, day(5))
	require.NoError(t, err)
	assert.Zero(t, summary.Created)
}

func TestSuspensionThenReactivation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.provisioned(t, 5)

	h.gw.On("DisablePPPoEUser", mock.Anything, mock.Anything, sub.MikrotikUsername).
		Return(mikrotiktest.OK(routerdomain.SyncActionDisableUser, "*S1"))
	h.gw.On("EnablePPPoEUser", mock.Anything, mock.Anything, sub.MikrotikUsername).
		Return(mikrotiktest.OK(routerdomain.SyncActionEnableUser, "*S1"))

	h.clock.Set(day(5).Add(8 * time.Hour))
	cycle, err := h.cycle.RunBillingCycle(ctx, day(5))
	require.NoError(t, err)
	require.Equal(t, 1, cycle.Created)
	require.Zero(t, cycle.AutoPaid)

	// Still inside the billing day: nothing to enforce.
	suspensions, err := h.cycle.EvaluateSubscriptionSuspensions(ctx, day(5))
	require.NoError(t, err)
	assert.Zero(t, suspensions.Checked)

	h.clock.Set(day(10).Add(8 * time.Hour))
	suspensions, err = h.cycle.EvaluateSubscriptionSuspensions(ctx, day(10))
	require.NoError(t, err)
	assert.Equal(t, 1, suspensions.Suspended)
	assert.Zero(t, suspensions.RouterFailed)

	got, err := h.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusSuspended, got.Status)

	bill, err := h.bills.FindBillForPeriod(ctx, sub.ID, 2025, 1)
	require.NoError(t, err)
	require.NotNil(t, bill)
	assert.Equal(t, ledger.BillStatusOverdue, bill.Status)
	require.Len(t, h.syncLogs(t, routerdomain.SyncActionDisableUser), 1)

	// Suspended subscriptions are not picked up again.
	suspensions, err = h.cycle.EvaluateSubscriptionSuspensions(ctx, day(11))
	require.NoError(t, err)
	assert.Zero(t, suspensions.Suspended)

	partial, err := h.bills.RecordPayment(ctx, billingdomain.RecordPaymentRequest{
		BillID:        bill.ID,
		Amount:        ledger.MustAmount("200.00"),
		PaymentMethod: billingdomain.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.False(t, partial.Reactivated)
	assert.Equal(t, ledger.BillStatusOverdue, partial.Bill.Status)

	paid, err := h.bills.RecordPayment(ctx, billingdomain.RecordPaymentRequest{
		BillID:        bill.ID,
		Amount:        ledger.MustAmount("300.00"),
		PaymentMethod: billingdomain.PaymentMethodBkash,
	})
	require.NoError(t, err)
	assert.True(t, paid.Reactivated)
	assert.Empty(t, paid.ReactivationError)
	assert.Equal(t, ledger.BillStatusPaid, paid.Bill.Status)
	assert.True(t, paid.Bill.DueAmount.IsZero())

	got, err = h.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusActive, got.Status)
	require.Len(t, h.syncLogs(t, routerdomain.SyncActionEnableUser), 1)

	history, err := h.subs.History(ctx, sub.ID)
	require.NoError(t, err)
	actions := make([]subscriptiondomain.HistoryAction, 0, len(history))
	for _, entry := range history {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []subscriptiondomain.HistoryAction{
		subscriptiondomain.HistoryCreated,
		subscriptiondomain.HistorySuspended,
		subscriptiondomain.HistoryActivated,
	}, actions)
}

func TestSuspensionRecordsRouterFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.provisioned(t, 5)

	h.gw.On("DisablePPPoEUser", mock.Anything, mock.Anything, sub.MikrotikUsername).
		Return(mikrotiktest.Fail(routerdomain.SyncActionDisableUser, "Failed to connect to router: i/o timeout"))

	_, err := h.cycle.RunBillingCycle(ctx, day(5))
	require.NoError(t, err)

	suspensions, err := h.cycle.EvaluateSubscriptionSuspensions(ctx, day(10))
	require.NoError(t, err)
	assert.Equal(t, 1, suspensions.Suspended)
	assert.Equal(t, 1, suspensions.RouterFailed)

	got, err := h.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusSuspended, got.Status)

	logs := h.syncLogs(t, routerdomain.SyncActionDisableUser)
	require.Len(t, logs, 1)
	assert.Equal(t, routerdomain.SyncStatusFailed, logs[0].Status)
}

func TestCreationRollbackKeepsSyncLog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.gw.On("CreateQueueProfile", mock.Anything, mock.Anything, mock.Anything).
		Return(mikrotiktest.OK(routerdomain.SyncActionCreateQueue, "*Q1"))
	h.gw.On("CreatePPPProfile", mock.Anything, mock.Anything, mock.Anything).
		Return(mikrotiktest.OK(routerdomain.SyncActionCreateProfile, "*P1"))
	h.gw.On("CreatePPPoEUser", mock.Anything, mock.Anything, mock.MatchedBy(func(spec mikrotik.SecretSpec) bool {
		return spec.Profile == "home-10"
	}), false).Return(mikrotiktest.Fail(routerdomain.SyncActionCreateUser, "failure: secret with the same name already exists"))

	customer, err := h.customers.Create(ctx, customerdomain.CreateRequest{Name: "Karim", Phone: "+8801800000000", Address: "Uttara"})
	require.NoError(t, err)
	pkg, err := h.packages.Create(ctx, productdomain.CreateRequest{
		Name: "Home 10", BandwidthDownload: 10, BandwidthUpload: 5, Price: ledger.MustAmount("500.00"),
	})
	require.NoError(t, err)
	router, err := h.routers.Create(ctx, routerdomain.CreateRequest{
		Name: "core-1", IPAddress: "10.0.0.1", Username: "api", Password: "pw",
	})
	require.NoError(t, err)

	_, err = h.subs.Create(ctx, subscriptiondomain.CreateRequest{
		CustomerID: customer.ID,
		PackageID:  pkg.ID,
		RouterID:   &router.ID,
		BillingDay: 5,
	})
	require.ErrorIs(t, err, subscriptiondomain.ErrProvisioningFailed)

	var subs, history int64
	require.NoError(t, h.db.Model(&subscriptiondomain.Subscription{}).Count(&subs).Error)
	require.NoError(t, h.db.Model(&subscriptiondomain.History{}).Count(&history).Error)
	assert.Zero(t, subs)
	assert.Zero(t, history)

	logs := h.syncLogs(t, routerdomain.SyncActionCreateUser)
	require.Len(t, logs, 1)
	assert.Equal(t, routerdomain.SyncStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Contains(t, *logs[0].ErrorMessage, "already exists")
}
