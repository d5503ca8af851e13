package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
)

type CheckoutRequest struct {
	UserID    snowflake.ID
	PlanID    *snowflake.ID
	BundleIDs []snowflake.ID
	AddOnIDs  []snowflake.ID
}

// CheckoutResult reports the artifacts a purchase created. Subscription is
// set without an invoice when a trial started instead of a paid checkout.
type CheckoutResult struct {
	Invoice      *invoicedomain.Invoice
	Subscription *subscriptiondomain.Subscription
	Purchases    []tokendomain.TokenBundlePurchase
	AddOns       []AddOnSubscription
}

// CaptureResult reports what a payment capture activated.
type CaptureResult struct {
	Invoice            *invoicedomain.Invoice
	SubscriptionID     *snowflake.ID
	PurchasesCompleted []snowflake.ID
	AddOnsActivated    []snowflake.ID
	TokensCredited     int64
}

// PlanChangeResult reports an immediate plan change. Invoice is nil when
// the proration credit covered the new plan's price.
type PlanChangeResult struct {
	Subscription *subscriptiondomain.Subscription
	Proration    *subscriptiondomain.ProrationResult
	Invoice      *invoicedomain.Invoice
}

// RefundOutcome reports what a refund reversed.
type RefundOutcome struct {
	Invoice               *invoicedomain.Invoice
	SubscriptionCancelled *snowflake.ID
	PurchasesRefunded     []snowflake.ID
	AddOnsCancelled       []snowflake.ID
	TokensDebited         int64
}

type Service interface {
	// PurchaseTokenBundle opens a PENDING invoice and purchase for one
	// bundle. Tokens are credited only when the payment is captured.
	PurchaseTokenBundle(ctx context.Context, userID, bundleID snowflake.ID) (*CheckoutResult, error)

	// PurchaseSubscription starts a trial when the user is eligible,
	// otherwise opens a PENDING subscription plus its invoice.
	PurchaseSubscription(ctx context.Context, userID, planID snowflake.ID) (*CheckoutResult, error)

	// Checkout opens one invoice covering an optional plan, token bundles
	// and add-ons, all as PENDING artifacts.
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)

	// HandlePaymentCaptured marks the invoice paid and activates every
	// line item. Duplicate deliveries are tolerated.
	HandlePaymentCaptured(ctx context.Context, invoiceID snowflake.ID, paymentRef, paymentMethod string) (*CaptureResult, error)

	// RenewSubscription opens the next-period invoice, priced by the
	// queued plan when one is pending.
	RenewSubscription(ctx context.Context, subscriptionID snowflake.ID) (*invoicedomain.Invoice, error)

	// ChangePlan swaps the plan immediately and bills the prorated
	// difference: the new plan's price minus credit for unused days.
	ChangePlan(ctx context.Context, subscriptionID, newPlanID snowflake.ID) (*PlanChangeResult, error)

	// ProcessRefund refunds a PAID invoice and reverses its line items.
	ProcessRefund(ctx context.Context, invoiceID snowflake.ID, refundRef string) (*RefundOutcome, error)
}

var (
	ErrBundleInactive    = errors.New("token_bundle_inactive")
	ErrAddOnInactive     = errors.New("add_on_inactive")
	ErrNothingToCheckout = errors.New("nothing_to_checkout")
	ErrNotRenewable      = errors.New("subscription_not_renewable")
)
