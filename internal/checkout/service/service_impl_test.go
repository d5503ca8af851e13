package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
	catalogrepo "github.com/luminapay/lumina/internal/catalog/repository"
	checkoutdomain "github.com/luminapay/lumina/internal/checkout/domain"
	checkoutrepo "github.com/luminapay/lumina/internal/checkout/repository"
	"github.com/luminapay/lumina/internal/clock"
	"github.com/luminapay/lumina/internal/config"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	invoicerepo "github.com/luminapay/lumina/internal/invoice/repository"
	invoicesvc "github.com/luminapay/lumina/internal/invoice/service"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	subscriptionrepo "github.com/luminapay/lumina/internal/subscription/repository"
	subscriptionsvc "github.com/luminapay/lumina/internal/subscription/service"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
	tokenrepo "github.com/luminapay/lumina/internal/tokenledger/repository"
	tokensvc "github.com/luminapay/lumina/internal/tokenledger/service"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	userrepo "github.com/luminapay/lumina/internal/user/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/luminapay/lumina/pkg/repository"
)

type fixture struct {
	db     *gorm.DB
	svc    checkoutdomain.Service
	ledger tokendomain.Service
	subs   subscriptiondomain.Service
	clock  *clock.FakeClock
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&subscriptiondomain.Subscription{},
		&tokendomain.TokenBalance{},
		&tokendomain.TokenTransaction{},
		&tokendomain.TokenBundlePurchase{},
		&checkoutdomain.AddOnSubscription{},
		&catalogdomain.Plan{},
		&catalogdomain.TokenBundle{},
		&catalogdomain.AddOn{},
		&userdomain.User{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	holder, err := config.NewBillingConfigHolder(config.Config{
		Billing: config.BillingConfig{
			DefaultCurrency:      "EUR",
			DefaultDueDays:       30,
			NumberRetryBudget:    5,
			ExpirySweepInterval:  time.Hour,
			TransactionPageLimit: 50,
		},
	}, zap.NewNop())
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	transactor := repository.NewGormTransactor(db)

	invoiceService := invoicesvc.NewService(invoicesvc.ServiceParam{
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Transactor: transactor,
		Repo:       invoicerepo.Provide(db),
		BillingCfg: holder,
	})

	plans := catalogrepo.ProvidePlans(db)
	users := userrepo.Provide(db)
	subRepo := subscriptionrepo.Provide(db)

	subscriptionService := subscriptionsvc.NewService(subscriptionsvc.ServiceParam{
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Transactor: transactor,
		Repo:       subRepo,
		Plans:      plans,
		Users:      users,
	})

	purchases := tokenrepo.ProvidePurchases(db)

	ledgerService := tokensvc.NewService(tokensvc.ServiceParam{
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Transactor: transactor,
		Repo:       tokenrepo.Provide(db),
		Purchases:  purchases,
		BillingCfg: holder,
	})

	svc := NewService(ServiceParam{
		Log:           log,
		GenID:         node,
		Clock:         fakeClock,
		Transactor:    transactor,
		Invoices:      invoiceService,
		Subscriptions: subscriptionService,
		SubRepo:       subRepo,
		Ledger:        ledgerService,
		Purchases:     purchases,
		AddOnSubs:     checkoutrepo.ProvideAddOnSubscriptions(db),
		Plans:         plans,
		Bundles:       catalogrepo.ProvideTokenBundles(db),
		AddOns:        catalogrepo.ProvideAddOns(db),
		Users:         users,
	})

	return &fixture{db: db, svc: svc, ledger: ledgerService, subs: subscriptionService, clock: fakeClock}
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, usedTrial bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&userdomain.User{
		ID:           id,
		Email:        fmt.Sprintf("user%d@example.com", id),
		Active:       true,
		HasUsedTrial: usedTrial,
	}).Error)
}

func (f *fixture) seedPlan(t *testing.T, id snowflake.ID, price string, trialDays int, active bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&catalogdomain.Plan{
		ID:            id,
		Name:          fmt.Sprintf("plan-%d", id),
		Price:         decimal.RequireFromString(price),
		Currency:      "EUR",
		BillingPeriod: catalogdomain.BillingPeriodMonthly,
		TrialDays:     trialDays,
		Active:        active,
	}).Error)
}

func (f *fixture) seedBundle(t *testing.T, id snowflake.ID, tokens int64, price string, active bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&catalogdomain.TokenBundle{
		ID:          id,
		Name:        fmt.Sprintf("bundle-%d", id),
		TokenAmount: tokens,
		Price:       decimal.RequireFromString(price),
		Currency:    "EUR",
		Active:      active,
	}).Error)
}

func (f *fixture) seedAddOn(t *testing.T, id snowflake.ID, price string, active bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&catalogdomain.AddOn{
		ID:       id,
		Name:     fmt.Sprintf("addon-%d", id),
		Price:    decimal.RequireFromString(price),
		Currency: "EUR",
		Active:   active,
	}).Error)
}

func TestPurchaseTokenBundleOpensInvoiceAndPurchase(t *testing.T) {
	f := newFixture(t, "co_bundle")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedBundle(t, 10, 500, "9.99", true)

	result, err := f.svc.PurchaseTokenBundle(ctx, 100, 10)
	require.NoError(t, err)

	require.NotNil(t, result.Invoice)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, result.Invoice.Status)
	assert.True(t, result.Invoice.TotalAmount.Equal(decimal.RequireFromString("9.99")))
	require.Len(t, result.Invoice.LineItems, 1)
	assert.Equal(t, invoicedomain.LineItemTypeTokenBundle, result.Invoice.LineItems[0].ItemType)

	require.Len(t, result.Purchases, 1)
	purchase := result.Purchases[0]
	assert.Equal(t, tokendomain.PurchaseStatusPending, purchase.Status)
	assert.False(t, purchase.TokensCredited)
	require.NotNil(t, purchase.InvoiceID)
	assert.Equal(t, result.Invoice.ID, *purchase.InvoiceID)

	// No tokens before payment.
	balance, err := f.ledger.Balance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestPurchaseTokenBundleInactive(t *testing.T) {
	f := newFixture(t, "co_bundle_inactive")
	f.seedUser(t, 100, true)
	f.seedBundle(t, 10, 500, "9.99", false)

	_, err := f.svc.PurchaseTokenBundle(context.Background(), 100, 10)
	assert.ErrorIs(t, err, checkoutdomain.ErrBundleInactive)
}

func TestCaptureCreditsOnceUnderDoubleDelivery(t *testing.T) {
	f := newFixture(t, "co_double")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedBundle(t, 10, 500, "9.99", true)

	result, err := f.svc.PurchaseTokenBundle(ctx, 100, 10)
	require.NoError(t, err)

	first, err := f.svc.HandlePaymentCaptured(ctx, result.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)
	assert.Equal(t, int64(500), first.TokensCredited)
	assert.Len(t, first.PurchasesCompleted, 1)

	// Same callback delivered twice.
	second, err := f.svc.HandlePaymentCaptured(ctx, result.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, second.Invoice.Status)

	balance, err := f.ledger.Balance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	txs, err := f.ledger.Transactions(ctx, 100, 10, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestPurchaseSubscriptionTrialEligible(t *testing.T) {
	f := newFixture(t, "co_trial")
	ctx := context.Background()
	f.seedUser(t, 100, false)
	f.seedPlan(t, 1, "19.99", 14, true)

	result, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)

	assert.Nil(t, result.Invoice)
	require.NotNil(t, result.Subscription)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusTrialing, result.Subscription.Status)
}

func TestPurchaseSubscriptionPaidPath(t *testing.T) {
	f := newFixture(t, "co_paid_sub")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 14, true)

	result, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)

	require.NotNil(t, result.Invoice)
	require.NotNil(t, result.Subscription)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPending, result.Subscription.Status)
	require.NotNil(t, result.Invoice.SubscriptionID)
	assert.Equal(t, result.Subscription.ID, *result.Invoice.SubscriptionID)

	capture, err := f.svc.HandlePaymentCaptured(ctx, result.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)
	require.NotNil(t, capture.SubscriptionID)

	activated, err := f.subs.Get(ctx, result.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, activated.Status)
	require.NotNil(t, activated.ExpiresAt)
}

func TestCaptureCancelsPreviousActiveSubscription(t *testing.T) {
	f := newFixture(t, "co_replace")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 0, true)
	f.seedPlan(t, 2, "49.99", 0, true)

	first, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, first.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)

	second, err := f.svc.PurchaseSubscription(ctx, 100, 2)
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, second.Invoice.ID, "pay_2", "card")
	require.NoError(t, err)

	old, err := f.subs.Get(ctx, first.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, old.Status)

	current, err := f.subs.Get(ctx, second.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, current.Status)
}

func TestCheckoutCombinedCart(t *testing.T) {
	f := newFixture(t, "co_cart")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 0, true)
	f.seedBundle(t, 10, 500, "9.99", true)
	f.seedAddOn(t, 20, "4.99", true)

	result, err := f.svc.Checkout(ctx, checkoutdomain.CheckoutRequest{
		UserID:    100,
		PlanID:    ptr(snowflake.ID(1)),
		BundleIDs: []snowflake.ID{10},
		AddOnIDs:  []snowflake.ID{20},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Invoice)
	assert.Len(t, result.Invoice.LineItems, 3)
	assert.True(t, result.Invoice.TotalAmount.Equal(decimal.RequireFromString("34.97")), result.Invoice.TotalAmount.String())
	require.Len(t, result.AddOns, 1)
	assert.Equal(t, checkoutdomain.AddOnStatusPending, result.AddOns[0].Status)

	capture, err := f.svc.HandlePaymentCaptured(ctx, result.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)
	assert.Equal(t, int64(500), capture.TokensCredited)
	assert.Len(t, capture.AddOnsActivated, 1)
	require.NotNil(t, capture.SubscriptionID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t, "co_empty")
	f.seedUser(t, 100, true)
	_, err := f.svc.Checkout(context.Background(), checkoutdomain.CheckoutRequest{UserID: 100})
	assert.ErrorIs(t, err, checkoutdomain.ErrNothingToCheckout)
}

func TestRenewalAppliesQueuedPlan(t *testing.T) {
	f := newFixture(t, "co_renew")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 0, true)
	f.seedPlan(t, 2, "9.99", 0, true)

	opened, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, opened.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)

	// Queue a downgrade, then renew.
	_, err = f.subs.QueuePlanChange(ctx, opened.Subscription.ID, 2)
	require.NoError(t, err)

	renewal, err := f.svc.RenewSubscription(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	// The renewal is priced by the queued plan.
	assert.True(t, renewal.TotalAmount.Equal(decimal.RequireFromString("9.99")), renewal.TotalAmount.String())

	before, err := f.subs.Get(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	expiryBefore := *before.ExpiresAt

	_, err = f.svc.HandlePaymentCaptured(ctx, renewal.ID, "pay_2", "card")
	require.NoError(t, err)

	after, err := f.subs.Get(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), after.PlanID)
	assert.Nil(t, after.PendingPlanID)
	require.NotNil(t, after.ExpiresAt)
	assert.Equal(t, expiryBefore.AddDate(0, 0, 30), *after.ExpiresAt)
}

func TestDuplicateCaptureDoesNotExtendPeriod(t *testing.T) {
	f := newFixture(t, "co_double_sub")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 0, true)

	opened, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, opened.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)

	activated, err := f.subs.Get(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	require.NotNil(t, activated.ExpiresAt)
	expiry := *activated.ExpiresAt

	// Same callback again: the subscription period must not move.
	_, err = f.svc.HandlePaymentCaptured(ctx, opened.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)

	after, err := f.subs.Get(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	require.NotNil(t, after.ExpiresAt)
	assert.Equal(t, expiry, *after.ExpiresAt)
}

func TestChangePlanBillsProratedDifference(t *testing.T) {
	f := newFixture(t, "co_change_plan")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "30.00", 0, true)
	f.seedPlan(t, 2, "60.00", 0, true)

	opened, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, opened.Invoice.ID, "pay_cp1", "card")
	require.NoError(t, err)

	// Half of the 30-day period used: half the old price comes back.
	f.clock.Advance(15 * 24 * time.Hour)

	result, err := f.svc.ChangePlan(ctx, opened.Subscription.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, "15.00", result.Proration.Credit.StringFixed(2))
	assert.Equal(t, "45.00", result.Proration.AmountDue.StringFixed(2))
	assert.Equal(t, 15, result.Proration.DaysRemaining)

	require.NotNil(t, result.Invoice)
	assert.Equal(t, "45.00", result.Invoice.TotalAmount.StringFixed(2))
	require.NotNil(t, result.Invoice.SubscriptionID)
	assert.Equal(t, opened.Subscription.ID, *result.Invoice.SubscriptionID)

	swapped, err := f.subs.Get(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), swapped.PlanID)
	assert.Nil(t, swapped.PendingPlanID)
}

func TestChangePlanCreditCoversNewPlan(t *testing.T) {
	f := newFixture(t, "co_change_plan_credit")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "60.00", 0, true)
	f.seedPlan(t, 2, "9.99", 0, true)

	opened, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, opened.Invoice.ID, "pay_cp2", "card")
	require.NoError(t, err)

	f.clock.Advance(10 * 24 * time.Hour)

	result, err := f.svc.ChangePlan(ctx, opened.Subscription.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, "40.00", result.Proration.Credit.StringFixed(2))
	assert.Equal(t, "0.00", result.Proration.AmountDue.StringFixed(2))
	assert.Nil(t, result.Invoice)

	swapped, err := f.subs.Get(ctx, opened.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), swapped.PlanID)
}

func TestRenewRequiresActive(t *testing.T) {
	f := newFixture(t, "co_renew_guard")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 0, true)

	opened, err := f.svc.PurchaseSubscription(ctx, 100, 1)
	require.NoError(t, err)

	_, err = f.svc.RenewSubscription(ctx, opened.Subscription.ID)
	assert.ErrorIs(t, err, checkoutdomain.ErrNotRenewable)
}

func TestProcessRefundReversesEverything(t *testing.T) {
	f := newFixture(t, "co_refund")
	ctx := context.Background()
	f.seedUser(t, 100, true)
	f.seedPlan(t, 1, "19.99", 0, true)
	f.seedBundle(t, 10, 500, "9.99", true)
	f.seedAddOn(t, 20, "4.99", true)

	result, err := f.svc.Checkout(ctx, checkoutdomain.CheckoutRequest{
		UserID:    100,
		PlanID:    ptr(snowflake.ID(1)),
		BundleIDs: []snowflake.ID{10},
		AddOnIDs:  []snowflake.ID{20},
	})
	require.NoError(t, err)
	_, err = f.svc.HandlePaymentCaptured(ctx, result.Invoice.ID, "pay_1", "card")
	require.NoError(t, err)

	// Spend most of the credited tokens before the refund.
	_, err = f.ledger.DebitForUsage(ctx, 100, 450, "spent")
	require.NoError(t, err)

	outcome, err := f.svc.ProcessRefund(ctx, result.Invoice.ID, "ref_1")
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusRefunded, outcome.Invoice.Status)
	require.NotNil(t, outcome.SubscriptionCancelled)
	assert.Len(t, outcome.PurchasesRefunded, 1)
	assert.Len(t, outcome.AddOnsCancelled, 1)
	// Debit clamped at the 50 remaining tokens.
	assert.Equal(t, int64(50), outcome.TokensDebited)

	balance, err := f.ledger.Balance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	sub, err := f.subs.Get(ctx, *outcome.SubscriptionCancelled)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, sub.Status)

	// Refunding twice fails: the invoice is no longer PAID.
	_, err = f.svc.ProcessRefund(ctx, result.Invoice.ID, "ref_2")
	assert.ErrorIs(t, err, invoicedomain.ErrNotPaid)
}

func ptr[T any](v T) *T { return &v }
