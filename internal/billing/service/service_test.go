package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/ispbilling/internal/billing/domain"
	"github.com/railzwaylabs/ispbilling/internal/billing/repository"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	invoicerepo "github.com/railzwaylabs/ispbilling/internal/invoice/repository"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	productrepo "github.com/railzwaylabs/ispbilling/internal/product/repository"
	productservice "github.com/railzwaylabs/ispbilling/internal/product/service"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	sequencerepo "github.com/railzwaylabs/ispbilling/internal/sequence/repository"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

// subscriptions stubs the two calls billing makes into the subscription service.
type subscriptions struct {
	subscriptiondomain.Service
	mock.Mock
}

func (m *subscriptions) Get(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*subscriptiondomain.Subscription)
	return sub, args.Error(1)
}

func (m *subscriptions) ReactivateAfterPayment(ctx context.Context, id snowflake.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	node      *snowflake.Node
	subs      *subscriptions
	discounts invoicedomain.Repository
	pkg       *productdomain.Package
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, "file:"+t.Name()+"?mode=memory&cache=shared")
}

func newFixtureOn(t *testing.T, dsn string) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&sequencedomain.NumberSequence{},
		&productdomain.Package{},
		&domain.Bill{},
		&domain.Payment{},
		&domain.AdvancePayment{},
		&invoicedomain.Discount{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.Fixed{At: testNow}
	log := zap.NewNop()

	packages := productservice.New(productservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide(),
	})
	pkg, err := packages.Create(context.Background(), productdomain.CreateRequest{
		Name: "Home 10", BandwidthDownload: 10, BandwidthUpload: 5, Price: ledger.MustAmount("500.00"),
	})
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		node:      node,
		subs:      &subscriptions{},
		discounts: invoicerepo.Provide(),
		pkg:       pkg,
	}
	f.svc = New(Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Config:        config.Config{Billing: config.BillingConfig{GraceDays: 7}},
		Repo:          repository.Provide(),
		Sequences:     sequencerepo.ProvideGenerator(sequencerepo.Provide()),
		Discounts:     f.discounts,
		Subscriptions: f.subs,
		Packages:      packages,
	}).(*Service)
	return f
}

func (f *fixture) subscription(status subscriptiondomain.Status, billingDay int) *subscriptiondomain.Subscription {
	sub := &subscriptiondomain.Subscription{
		ID:         f.node.Generate(),
		PackageID:  f.pkg.ID,
		Status:     status,
		BillingDay: billingDay,
	}
	f.subs.On("Get", mock.Anything, sub.ID).Return(sub, nil)
	return sub
}

func (f *fixture) advance(t *testing.T, subID snowflake.ID, amount string) *domain.AdvancePayment {
	t.Helper()
	adv, err := f.svc.CreateAdvancePayment(context.Background(), domain.CreateAdvanceRequest{
		SubscriptionID: subID,
		Amount:         ledger.MustAmount(amount),
		PaymentMethod:  domain.PaymentMethodBkash,
	})
	require.NoError(t, err)
	return adv
}

func (f *fixture) pendingBill(t *testing.T, sub *subscriptiondomain.Subscription) *domain.Bill {
	t.Helper()
	out, err := f.svc.GenerateBill(context.Background(), sub.ID, testNow)
	require.NoError(t, err)
	require.True(t, out.Created)
	require.Equal(t, ledger.BillStatusPending, out.Bill.Status)
	return out.Bill
}

func assertAmounts(t *testing.T, bill *domain.Bill) {
	t.Helper()
	assert.True(t, bill.TotalAmount.Equal(bill.PackagePrice.Add(bill.OtherCharges).Sub(bill.Discount)), "total")
	assert.True(t, bill.DueAmount.Equal(bill.TotalAmount.Sub(bill.PaidAmount)), "due")
}

func TestGenerateBillDrawsCoveringAdvance(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	adv := f.advance(t, sub.ID, "500.00")
	require.Equal(t, "ADV-2025-0001", adv.AdvanceNumber)
	require.Equal(t, "500.00", adv.RemainingBalance.StringFixed(2))

	out, err := f.svc.GenerateBill(context.Background(), sub.ID, testNow)
	require.NoError(t, err)
	require.True(t, out.Created)
	require.True(t, out.AutoPaid)

	bill := out.Bill
	assert.Equal(t, "BILL-2025-01-0001", bill.BillNumber)
	assert.Equal(t, ledger.BillStatusPaid, bill.Status)
	assert.Equal(t, "500.00", bill.PaidAmount.StringFixed(2))
	assert.Equal(t, "0.00", bill.DueAmount.StringFixed(2))
	assert.True(t, bill.IsAutoGenerated)
	assert.Equal(t, time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), bill.DueDate)
	assertAmounts(t, bill)

	advances, err := f.svc.ListAdvances(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Len(t, advances, 1)
	assert.Equal(t, "500.00", advances[0].UsedAmount.StringFixed(2))
	assert.Equal(t, "0.00", advances[0].RemainingBalance.StringFixed(2))

	balance, err := f.svc.AdvanceBalance(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestGenerateBillLeavesShortAdvanceAlone(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	f.advance(t, sub.ID, "300.00")

	bill := f.pendingBill(t, sub)
	assert.True(t, bill.PaidAmount.IsZero())

	balance, err := f.svc.AdvanceBalance(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", balance.StringFixed(2))
}

func TestGenerateBillIsIdempotentPerPeriod(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	first := f.pendingBill(t, sub)

	again, err := f.svc.GenerateBill(context.Background(), sub.ID, testNow.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.ID, again.Bill.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.Bill{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	next, err := f.svc.GenerateBill(context.Background(), sub.ID, testNow.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, next.Created)
	assert.Equal(t, "BILL-2025-02-0001", next.Bill.BillNumber)
}

func TestGenerateBillRequiresActiveSubscription(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusSuspended, 10)

	_, err := f.svc.GenerateBill(context.Background(), sub.ID, testNow)
	require.ErrorIs(t, err, domain.ErrSubscriptionInactive)
}

func TestRecordPaymentSettlesAndReactivates(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)
	f.subs.On("ReactivateAfterPayment", mock.Anything, sub.ID).Return(true, nil).Once()

	partial, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("200.00"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-2025-0001", partial.Payment.PaymentNumber)
	assert.Equal(t, ledger.BillStatusPartial, partial.Bill.Status)
	assert.Equal(t, "300.00", partial.Bill.DueAmount.StringFixed(2))
	assert.False(t, partial.Reactivated)
	f.subs.AssertNotCalled(t, "ReactivateAfterPayment", mock.Anything, sub.ID)

	settled, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("300.00"), PaymentMethod: domain.PaymentMethodNagad,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusPaid, settled.Bill.Status)
	assert.True(t, settled.Bill.DueAmount.IsZero())
	assert.True(t, settled.Reactivated)
	assertAmounts(t, settled.Bill)
	f.subs.AssertExpectations(t)

	payments, err := f.svc.ListPayments(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
}

func TestRecordPaymentConcurrentPaymentsBothApply(t *testing.T) {
	f := newFixtureOn(t, filepath.Join(t.TempDir(), "billing.db")+"?_pragma=busy_timeout(5000)")
	// sqlite has no row locks; one connection serializes the bill transactions.
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)

	var g errgroup.Group
	for _, amount := range []string{"120.00", "230.00"} {
		g.Go(func() error {
			_, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
				BillID: bill.ID, Amount: ledger.MustAmount(amount), PaymentMethod: domain.PaymentMethodCash,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "350.00", stored.PaidAmount.StringFixed(2))
	assert.Equal(t, "150.00", stored.DueAmount.StringFixed(2))
	assert.Equal(t, ledger.BillStatusPartial, stored.Status)
	assertAmounts(t, stored)

	payments, err := f.svc.ListPayments(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.NotEqual(t, payments[0].PaymentNumber, payments[1].PaymentNumber)
}

func TestRecordPaymentKeepsPaymentWhenReactivationFails(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)
	f.subs.On("ReactivateAfterPayment", mock.Anything, sub.ID).Return(false, errors.New("router unreachable"))

	res, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("500.00"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusPaid, res.Bill.Status)
	assert.False(t, res.Reactivated)
	assert.Equal(t, "router unreachable", res.ReactivationError)

	stored, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusPaid, stored.Status)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)

	_, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("500.01"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, ledger.ErrAmountExceedsDue)

	_, err = f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("0"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, ledger.ErrAmountNotPositive)

	_, err = f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: f.node.Generate(), Amount: ledger.MustAmount("10"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, domain.ErrBillNotFound)

	pending, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("100"), PaymentMethod: domain.PaymentMethodBank,
		Status: domain.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusPending, pending.Bill.Status)
	assert.True(t, pending.Bill.PaidAmount.IsZero())
}

func TestApplyDiscount(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)

	maxUses := 1
	discount := &invoicedomain.Discount{
		ID:            f.node.Generate(),
		Name:          "Winter 10%",
		DiscountType:  ledger.DiscountTypePercentage,
		DiscountValue: ledger.MustAmount("10"),
		ApplyTo:       invoicedomain.DiscountScopePromotional,
		StartDate:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
		MaxUses:       &maxUses,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	require.NoError(t, f.discounts.InsertDiscount(context.Background(), f.db, discount))

	updated, err := f.svc.ApplyDiscount(context.Background(), bill.ID, discount.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", updated.Discount.StringFixed(2))
	assert.Equal(t, "450.00", updated.TotalAmount.StringFixed(2))
	assert.Equal(t, "450.00", updated.DueAmount.StringFixed(2))
	assertAmounts(t, updated)

	stored, err := f.discounts.FindDiscountByID(context.Background(), f.db, discount.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses)

	_, err = f.svc.ApplyDiscount(context.Background(), bill.ID, discount.ID)
	require.ErrorIs(t, err, domain.ErrDiscountUnavailable)
}

func TestAddChargeAndCancel(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)

	charged, err := f.svc.AddCharge(context.Background(), domain.AddChargeRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("150.00"), Note: "Reconnection fee",
	})
	require.NoError(t, err)
	assert.Equal(t, "650.00", charged.TotalAmount.StringFixed(2))
	require.NotNil(t, charged.Notes)
	assert.Equal(t, "Reconnection fee", *charged.Notes)

	cancelled, err := f.svc.CancelBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusCancelled, cancelled.Status)

	_, err = f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("10"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.ErrorIs(t, err, domain.ErrBillCancelled)
}

func TestCancelBillWithPayments(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 10)
	bill := f.pendingBill(t, sub)
	_, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: bill.ID, Amount: ledger.MustAmount("100"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)

	_, err = f.svc.CancelBill(context.Background(), bill.ID)
	require.ErrorIs(t, err, domain.ErrBillHasPayments)
}

func TestMarkOverdueAndSweep(t *testing.T) {
	f := newFixture(t)
	unpaid := f.pendingBill(t, f.subscription(subscriptiondomain.StatusActive, 10))
	paidSub := f.subscription(subscriptiondomain.StatusActive, 10)
	f.advance(t, paidSub.ID, "500.00")
	paid, err := f.svc.GenerateBill(context.Background(), paidSub.ID, testNow)
	require.NoError(t, err)
	require.True(t, paid.AutoPaid)

	summary, err := f.svc.SweepOverdue(context.Background(), time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.Marked)

	summary, err = f.svc.SweepOverdue(context.Background(), time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Marked)

	stored, err := f.svc.GetBill(context.Background(), unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusOverdue, stored.Status)

	summary, err = f.svc.SweepOverdue(context.Background(), time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.Marked)

	_, err = f.svc.MarkOverdue(context.Background(), paid.Bill.ID)
	require.ErrorIs(t, err, domain.ErrBillSettled)

	f.subs.On("ReactivateAfterPayment", mock.Anything, unpaid.SubscriptionID).Return(false, nil)
	res, err := f.svc.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		BillID: unpaid.ID, Amount: ledger.MustAmount("500"), PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BillStatusPaid, res.Bill.Status)
}

func TestCreateBillClampsBillingDay(t *testing.T) {
	f := newFixture(t)
	sub := f.subscription(subscriptiondomain.StatusActive, 31)

	bill, err := f.svc.CreateBill(context.Background(), domain.CreateBillRequest{
		SubscriptionID: sub.ID,
		BillingYear:    2025,
		BillingMonth:   2,
		OtherCharges:   ledger.MustAmount("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), bill.BillingDate)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC), bill.DueDate)
	assert.Equal(t, "550.00", bill.TotalAmount.StringFixed(2))
	assert.False(t, bill.IsAutoGenerated)

	_, err = f.svc.CreateBill(context.Background(), domain.CreateBillRequest{
		SubscriptionID: sub.ID, BillingYear: 2025, BillingMonth: 2,
	})
	require.ErrorIs(t, err, domain.ErrBillExists)

	_, err = f.svc.CreateBill(context.Background(), domain.CreateBillRequest{
		SubscriptionID: sub.ID, BillingYear: 2025, BillingMonth: 3,
		Discount: ledger.MustAmount("600"),
	})
	require.ErrorIs(t, err, ledger.ErrDiscountTooLarge)
}

func TestBillingDateFor(t *testing.T) {
	assert.Equal(t, 28, billingDateFor(2025, time.February, 31, time.UTC).Day())
	assert.Equal(t, 29, billingDateFor(2024, time.February, 30, time.UTC).Day())
	assert.Equal(t, 15, billingDateFor(2025, time.April, 15, time.UTC).Day())
}
