package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
	checkoutdomain "github.com/luminapay/lumina/internal/checkout/domain"
	"github.com/luminapay/lumina/internal/clock"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	"github.com/luminapay/lumina/internal/observability/metrics"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	"github.com/luminapay/lumina/pkg/money"
	"github.com/luminapay/lumina/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	transactor repository.Transactor

	invoices      invoicedomain.Service
	subscriptions subscriptiondomain.Service
	subRepo       subscriptiondomain.Repository
	ledger        tokendomain.Service
	purchases     tokendomain.PurchaseRepository
	addOnSubs     checkoutdomain.AddOnSubscriptionRepository

	plans   catalogdomain.PlanRepository
	bundles catalogdomain.TokenBundleRepository
	addOns  catalogdomain.AddOnRepository
	users   userdomain.Repository

	metrics *metrics.BillingMetrics
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Transactor repository.Transactor

	Invoices      invoicedomain.Service
	Subscriptions subscriptiondomain.Service
	SubRepo       subscriptiondomain.Repository
	Ledger        tokendomain.Service
	Purchases     tokendomain.PurchaseRepository
	AddOnSubs     checkoutdomain.AddOnSubscriptionRepository

	Plans   catalogdomain.PlanRepository
	Bundles catalogdomain.TokenBundleRepository
	AddOns  catalogdomain.AddOnRepository
	Users   userdomain.Repository

	Metrics *metrics.BillingMetrics `optional:"true"`
}

func NewService(p ServiceParam) checkoutdomain.Service {
	return &Service{
		log:           p.Log.Named("checkout.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		transactor:    p.Transactor,
		invoices:      p.Invoices,
		subscriptions: p.Subscriptions,
		subRepo:       p.SubRepo,
		ledger:        p.Ledger,
		purchases:     p.Purchases,
		addOnSubs:     p.AddOnSubs,
		plans:         p.Plans,
		bundles:       p.Bundles,
		addOns:        p.AddOns,
		users:         p.Users,
		metrics:       p.Metrics,
	}
}

// PurchaseTokenBundle implements domain.Service.
func (s *Service) PurchaseTokenBundle(ctx context.Context, userID, bundleID snowflake.ID) (*checkoutdomain.CheckoutResult, error) {
	return s.Checkout(ctx, checkoutdomain.CheckoutRequest{
		UserID:    userID,
		BundleIDs: []snowflake.ID{bundleID},
	})
}

// PurchaseSubscription implements domain.Service. A trial-eligible user
// gets a TRIALING subscription with no invoice; everyone else gets the
// PENDING subscription plus invoice pair.
func (s *Service) PurchaseSubscription(ctx context.Context, userID, planID snowflake.ID) (*checkoutdomain.CheckoutResult, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %d: %w", planID, catalogdomain.ErrPlanNotFound)
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %d: %w", planID, subscriptiondomain.ErrPlanInactive)
	}

	if plan.TrialDays > 0 {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user != nil && !user.HasUsedTrial {
			subscription, err := s.subscriptions.StartTrial(ctx, userID, planID)
			if err != nil {
				return nil, err
			}
			return &checkoutdomain.CheckoutResult{Subscription: subscription}, nil
		}
	}

	return s.Checkout(ctx, checkoutdomain.CheckoutRequest{
		UserID: userID,
		PlanID: &planID,
	})
}

// Checkout implements domain.Service. All artifacts and the invoice commit
// atomically; any step failure rolls the whole checkout back.
func (s *Service) Checkout(ctx context.Context, req checkoutdomain.CheckoutRequest) (*checkoutdomain.CheckoutResult, error) {
	if req.UserID == 0 {
		return nil, fmt.Errorf("checkout: %w", invoicedomain.ErrInvalidUser)
	}
	if req.PlanID == nil && len(req.BundleIDs) == 0 && len(req.AddOnIDs) == 0 {
		return nil, checkoutdomain.ErrNothingToCheckout
	}

	result := &checkoutdomain.CheckoutResult{}

	err := s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now().UTC()
		var lines []invoicedomain.LineItemInput
		var subscriptionID *snowflake.ID
		var planID *snowflake.ID
		currency := ""

		if req.PlanID != nil {
			plan, err := s.plans.FindByID(ctx, *req.PlanID)
			if err != nil {
				return err
			}
			if plan == nil {
				return fmt.Errorf("plan %d: %w", *req.PlanID, catalogdomain.ErrPlanNotFound)
			}
			if !plan.Active {
				return fmt.Errorf("plan %d: %w", *req.PlanID, subscriptiondomain.ErrPlanInactive)
			}

			subscription := &subscriptiondomain.Subscription{
				ID:        s.genID.Generate(),
				UserID:    req.UserID,
				PlanID:    plan.ID,
				Status:    subscriptiondomain.SubscriptionStatusPending,
				StartedAt: now,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.subRepo.Insert(ctx, subscription); err != nil {
				return fmt.Errorf("checkout: subscription: %w", err)
			}

			lines = append(lines, invoicedomain.LineItemInput{
				ItemType:    invoicedomain.LineItemTypeSubscription,
				ItemID:      subscription.ID,
				Description: plan.Name,
				Quantity:    1,
				UnitPrice:   plan.Price,
				TotalPrice:  plan.Price,
			})
			currency = plan.Currency
			subscriptionID = &subscription.ID
			planID = &plan.ID
			result.Subscription = subscription
		}

		for _, bundleID := range req.BundleIDs {
			bundle, err := s.bundles.FindByID(ctx, bundleID)
			if err != nil {
				return err
			}
			if bundle == nil {
				return fmt.Errorf("bundle %d: %w", bundleID, catalogdomain.ErrBundleNotFound)
			}
			if !bundle.Active {
				return fmt.Errorf("bundle %d: %w", bundleID, checkoutdomain.ErrBundleInactive)
			}

			purchase := &tokendomain.TokenBundlePurchase{
				ID:          s.genID.Generate(),
				UserID:      req.UserID,
				BundleID:    bundle.ID,
				Status:      tokendomain.PurchaseStatusPending,
				TokenAmount: bundle.TokenAmount,
				Price:       bundle.Price,
				Currency:    bundle.Currency,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.purchases.Insert(ctx, purchase); err != nil {
				return fmt.Errorf("checkout: purchase: %w", err)
			}

			lines = append(lines, invoicedomain.LineItemInput{
				ItemType:    invoicedomain.LineItemTypeTokenBundle,
				ItemID:      purchase.ID,
				Description: bundle.Name,
				Quantity:    1,
				UnitPrice:   bundle.Price,
				TotalPrice:  bundle.Price,
			})
			if currency == "" {
				currency = bundle.Currency
			}
			result.Purchases = append(result.Purchases, *purchase)
		}

		for _, addOnID := range req.AddOnIDs {
			addOn, err := s.addOns.FindByID(ctx, addOnID)
			if err != nil {
				return err
			}
			if addOn == nil {
				return fmt.Errorf("add-on %d: %w", addOnID, catalogdomain.ErrAddOnNotFound)
			}
			if !addOn.Active {
				return fmt.Errorf("add-on %d: %w", addOnID, checkoutdomain.ErrAddOnInactive)
			}

			addOnSub := &checkoutdomain.AddOnSubscription{
				ID:        s.genID.Generate(),
				UserID:    req.UserID,
				AddOnID:   addOn.ID,
				Status:    checkoutdomain.AddOnStatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.addOnSubs.Insert(ctx, addOnSub); err != nil {
				return fmt.Errorf("checkout: add-on: %w", err)
			}

			lines = append(lines, invoicedomain.LineItemInput{
				ItemType:    invoicedomain.LineItemTypeAddOn,
				ItemID:      addOnSub.ID,
				Description: addOn.Name,
				Quantity:    1,
				UnitPrice:   addOn.Price,
				TotalPrice:  addOn.Price,
			})
			if currency == "" {
				currency = addOn.Currency
			}
			result.AddOns = append(result.AddOns, *addOnSub)
		}

		invoice, err := s.invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
			UserID:         req.UserID,
			SubscriptionID: subscriptionID,
			PlanID:         planID,
			LineItems:      lines,
			Currency:       currency,
		})
		if err != nil {
			return fmt.Errorf("checkout: invoice: %w", err)
		}
		result.Invoice = invoice

		// Link the artifacts back to their invoice.
		for i := range result.Purchases {
			purchase := &result.Purchases[i]
			purchase.InvoiceID = &invoice.ID
			purchase.UpdatedAt = now
			if err := s.purchases.Save(ctx, purchase); err != nil {
				return fmt.Errorf("checkout: link purchase %d: %w", purchase.ID, err)
			}
		}
		for i := range result.AddOns {
			addOnSub := &result.AddOns[i]
			addOnSub.InvoiceID = &invoice.ID
			addOnSub.UpdatedAt = now
			if err := s.addOnSubs.Save(ctx, addOnSub); err != nil {
				return fmt.Errorf("checkout: link add-on %d: %w", addOnSub.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout opened",
		zap.Int64("user_id", req.UserID.Int64()),
		zap.Int64("invoice_id", result.Invoice.ID.Int64()),
		zap.String("total", result.Invoice.TotalAmount.String()),
	)

	return result, nil
}

// HandlePaymentCaptured implements domain.Service. The invoice flips to
// PAID first; activation failures afterwards never roll that back. A token
// credit failure flags the purchase for manual reconciliation instead.
func (s *Service) HandlePaymentCaptured(ctx context.Context, invoiceID snowflake.ID, paymentRef, paymentMethod string) (*checkoutdomain.CaptureResult, error) {
	firstCapture := true
	invoice, err := s.invoices.MarkPaid(ctx, invoiceID, paymentRef, paymentMethod)
	if err != nil {
		if !errors.Is(err, invoicedomain.ErrAlreadyPaid) {
			return nil, err
		}
		// Duplicate delivery: reload and re-run the idempotent activation.
		firstCapture = false
		invoice, err = s.invoices.Get(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
	}

	result := &checkoutdomain.CaptureResult{Invoice: invoice}

	for _, line := range invoice.LineItems {
		switch line.ItemType {
		case invoicedomain.LineItemTypeSubscription:
			if err := s.activateSubscriptionLine(ctx, invoice, line.ItemID, firstCapture, result); err != nil {
				return nil, err
			}
		case invoicedomain.LineItemTypeTokenBundle:
			s.creditPurchaseLine(ctx, invoice, line.ItemID, result)
		case invoicedomain.LineItemTypeAddOn:
			if err := s.activateAddOnLine(ctx, line.ItemID, result); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

func (s *Service) activateSubscriptionLine(ctx context.Context, invoice *invoicedomain.Invoice, subscriptionID snowflake.ID, firstCapture bool, result *checkoutdomain.CaptureResult) error {
	subscription, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
			s.log.Warn("paid invoice references missing subscription",
				zap.Int64("invoice_id", invoice.ID.Int64()),
				zap.Int64("subscription_id", subscriptionID.Int64()),
			)
			return nil
		}
		return err
	}

	switch subscription.Status {
	case subscriptiondomain.SubscriptionStatusPending, subscriptiondomain.SubscriptionStatusTrialing:
		// First activation: retire any other active subscription first.
		prev, err := s.subscriptions.FindActiveByUser(ctx, invoice.UserID)
		if err != nil {
			return err
		}
		if prev != nil && prev.ID != subscription.ID {
			if _, err := s.subscriptions.Cancel(ctx, prev.ID); err != nil {
				return fmt.Errorf("capture invoice %d: cancel previous subscription %d: %w", invoice.ID, prev.ID, err)
			}
		}

		activated, err := s.subscriptions.Activate(ctx, subscription.ID)
		if err != nil {
			return fmt.Errorf("capture invoice %d: activate subscription %d: %w", invoice.ID, subscription.ID, err)
		}
		result.SubscriptionID = &activated.ID

	case subscriptiondomain.SubscriptionStatusActive:
		// Renewal payment: apply any queued plan swap and extend the period.
		// Only the delivery that flipped the invoice to PAID extends, so a
		// duplicate callback never double-extends.
		if !firstCapture {
			return nil
		}
		if invoice.SubscriptionID == nil || *invoice.SubscriptionID != subscription.ID {
			return nil
		}
		if err := s.applyRenewal(ctx, subscription); err != nil {
			return fmt.Errorf("capture invoice %d: renew subscription %d: %w", invoice.ID, subscription.ID, err)
		}
		result.SubscriptionID = &subscription.ID

	default:
		s.log.Warn("paid invoice references subscription in unexpected state",
			zap.Int64("invoice_id", invoice.ID.Int64()),
			zap.Int64("subscription_id", subscription.ID.Int64()),
			zap.String("status", string(subscription.Status)),
		)
	}

	return nil
}

// applyRenewal swaps in the queued plan, if any, and pushes the period end
// out by one billing period.
func (s *Service) applyRenewal(ctx context.Context, subscription *subscriptiondomain.Subscription) error {
	if subscription.PendingPlanID != nil {
		subscription.PlanID = *subscription.PendingPlanID
		subscription.PendingPlanID = nil
	}

	plan, err := s.plans.FindByID(ctx, subscription.PlanID)
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("plan %d: %w", subscription.PlanID, catalogdomain.ErrPlanNotFound)
	}

	now := s.clock.Now().UTC()
	base := now
	if subscription.ExpiresAt != nil && subscription.ExpiresAt.After(now) {
		base = *subscription.ExpiresAt
	}
	expiresAt := base.AddDate(0, 0, plan.BillingPeriod.Days())

	subscription.ExpiresAt = &expiresAt
	subscription.UpdatedAt = now

	if err := s.subRepo.Save(ctx, subscription); err != nil {
		return err
	}

	s.log.Info("subscription renewed",
		zap.Int64("subscription_id", subscription.ID.Int64()),
		zap.Int64("plan_id", subscription.PlanID.Int64()),
		zap.Time("expires_at", expiresAt),
	)

	return nil
}

// creditPurchaseLine credits a token bundle line. The invoice is already
// PAID; a credit failure is flagged for manual reconciliation, never
// propagated.
func (s *Service) creditPurchaseLine(ctx context.Context, invoice *invoicedomain.Invoice, purchaseID snowflake.ID, result *checkoutdomain.CaptureResult) {
	purchase, err := s.ledger.CreditFromPurchase(ctx, purchaseID, invoice.ID)
	if err != nil {
		s.metrics.RecordReconciliationFlag()
		s.log.Error("token credit failed after payment, flagged for reconciliation",
			zap.Int64("invoice_id", invoice.ID.Int64()),
			zap.Int64("purchase_id", purchaseID.Int64()),
			zap.Error(err),
		)
		return
	}

	result.PurchasesCompleted = append(result.PurchasesCompleted, purchase.ID)
	result.TokensCredited += purchase.TokenAmount
}

func (s *Service) activateAddOnLine(ctx context.Context, addOnSubID snowflake.ID, result *checkoutdomain.CaptureResult) error {
	addOnSub, err := s.addOnSubs.FindByID(ctx, addOnSubID)
	if err != nil {
		return err
	}
	if addOnSub == nil || addOnSub.Status != checkoutdomain.AddOnStatusPending {
		return nil
	}

	now := s.clock.Now().UTC()
	addOnSub.Status = checkoutdomain.AddOnStatusActive
	addOnSub.ActivatedAt = &now
	addOnSub.UpdatedAt = now

	if err := s.addOnSubs.Save(ctx, addOnSub); err != nil {
		return fmt.Errorf("activate add-on %d: %w", addOnSubID, err)
	}

	result.AddOnsActivated = append(result.AddOnsActivated, addOnSub.ID)
	return nil
}

// RenewSubscription implements domain.Service. Prices the next period by
// the queued plan when one is pending; the swap itself applies when the
// invoice is paid.
func (s *Service) RenewSubscription(ctx context.Context, subscriptionID snowflake.ID) (*invoicedomain.Invoice, error) {
	subscription, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, fmt.Errorf("subscription %d in %s: %w", subscriptionID, subscription.Status, checkoutdomain.ErrNotRenewable)
	}

	planID := subscription.PlanID
	if subscription.PendingPlanID != nil {
		planID = *subscription.PendingPlanID
	}

	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %d: %w", planID, catalogdomain.ErrPlanNotFound)
	}

	invoice, err := s.invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
		UserID:         subscription.UserID,
		SubscriptionID: &subscription.ID,
		PlanID:         &plan.ID,
		LineItems: []invoicedomain.LineItemInput{{
			ItemType:    invoicedomain.LineItemTypeSubscription,
			ItemID:      subscription.ID,
			Description: fmt.Sprintf("%s renewal", plan.Name),
			Quantity:    1,
			UnitPrice:   plan.Price,
			TotalPrice:  plan.Price,
		}},
		Currency: plan.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("renew subscription %d: %w", subscriptionID, err)
	}

	s.log.Info("renewal invoice opened",
		zap.Int64("subscription_id", subscriptionID.Int64()),
		zap.Int64("invoice_id", invoice.ID.Int64()),
		zap.Int64("plan_id", plan.ID.Int64()),
	)

	return invoice, nil
}

// ChangePlan implements domain.Service. Prices the change before the swap
// so the credit is computed against the outgoing plan; the swap and the
// prorated invoice commit atomically.
func (s *Service) ChangePlan(ctx context.Context, subscriptionID, newPlanID snowflake.ID) (*checkoutdomain.PlanChangeResult, error) {
	proration, err := s.subscriptions.CalculateProration(ctx, subscriptionID, newPlanID)
	if err != nil {
		return nil, err
	}

	result := &checkoutdomain.PlanChangeResult{Proration: proration}

	err = s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		subscription, err := s.subscriptions.ChangePlanNow(ctx, subscriptionID, newPlanID)
		if err != nil {
			return err
		}
		result.Subscription = subscription

		due := money.Money{Amount: proration.AmountDue, Currency: proration.Currency}
		if due.IsZero() {
			// The credit covered the new plan; nothing to bill this period.
			return nil
		}

		plan, err := s.plans.FindByID(ctx, newPlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return fmt.Errorf("plan %d: %w", newPlanID, catalogdomain.ErrPlanNotFound)
		}

		invoice, err := s.invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
			UserID:         subscription.UserID,
			SubscriptionID: &subscription.ID,
			PlanID:         &plan.ID,
			LineItems: []invoicedomain.LineItemInput{{
				ItemType:    invoicedomain.LineItemTypeSubscription,
				ItemID:      subscription.ID,
				Description: fmt.Sprintf("%s plan change", plan.Name),
				Quantity:    1,
				UnitPrice:   proration.AmountDue,
				TotalPrice:  proration.AmountDue,
			}},
			Currency: proration.Currency,
		})
		if err != nil {
			return fmt.Errorf("change plan subscription %d: invoice: %w", subscriptionID, err)
		}
		result.Invoice = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("plan changed",
		zap.Int64("subscription_id", subscriptionID.Int64()),
		zap.Int64("plan_id", newPlanID.Int64()),
		zap.String("credit", proration.Credit.StringFixed(2)),
		zap.String("amount_due", proration.AmountDue.StringFixed(2)),
	)

	return result, nil
}

// ProcessRefund implements domain.Service. Marks the invoice REFUNDED and
// reverses each line: cancels the subscription, refunds completed token
// purchases (debiting tokens clamped at the balance), cancels add-ons.
func (s *Service) ProcessRefund(ctx context.Context, invoiceID snowflake.ID, refundRef string) (*checkoutdomain.RefundOutcome, error) {
	invoice, err := s.invoices.MarkRefunded(ctx, invoiceID, refundRef)
	if err != nil {
		return nil, err
	}

	outcome := &checkoutdomain.RefundOutcome{Invoice: invoice}

	for _, line := range invoice.LineItems {
		if line.ItemType == invoicedomain.LineItemTypeSubscription {
			if err := s.reverseSubscriptionLine(ctx, line.ItemID, outcome); err != nil {
				return nil, err
			}
		}
	}

	// Purchases and add-ons carry their invoice link, so reversal walks
	// the link rather than the line items.
	linked, err := s.purchases.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	for i := range linked {
		if err := s.reversePurchaseLine(ctx, invoice.UserID, linked[i].ID, outcome); err != nil {
			return nil, err
		}
	}

	addOnSubs, err := s.addOnSubs.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	for i := range addOnSubs {
		if err := s.reverseAddOnLine(ctx, addOnSubs[i].ID, outcome); err != nil {
			return nil, err
		}
	}

	s.log.Info("refund processed",
		zap.Int64("invoice_id", invoiceID.Int64()),
		zap.String("refund_ref", refundRef),
		zap.Int64("tokens_debited", outcome.TokensDebited),
	)

	return outcome, nil
}

func (s *Service) reverseSubscriptionLine(ctx context.Context, subscriptionID snowflake.ID, outcome *checkoutdomain.RefundOutcome) error {
	subscription, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}
	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil
	}

	cancelled, err := s.subscriptions.Cancel(ctx, subscription.ID)
	if err != nil {
		return fmt.Errorf("refund: cancel subscription %d: %w", subscriptionID, err)
	}
	outcome.SubscriptionCancelled = &cancelled.ID
	return nil
}

func (s *Service) reversePurchaseLine(ctx context.Context, userID, purchaseID snowflake.ID, outcome *checkoutdomain.RefundOutcome) error {
	purchase, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return err
	}
	if purchase == nil || purchase.Status != tokendomain.PurchaseStatusCompleted {
		return nil
	}

	return s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		purchase.Status = tokendomain.PurchaseStatusRefunded
		purchase.UpdatedAt = s.clock.Now().UTC()
		if err := s.purchases.Save(ctx, purchase); err != nil {
			return fmt.Errorf("refund: purchase %d: %w", purchaseID, err)
		}

		debited, err := s.ledger.ReverseForRefund(ctx, userID, purchase.TokenAmount, purchase.ID)
		if err != nil {
			return fmt.Errorf("refund: reverse tokens for purchase %d: %w", purchaseID, err)
		}

		outcome.PurchasesRefunded = append(outcome.PurchasesRefunded, purchase.ID)
		outcome.TokensDebited += debited
		return nil
	})
}

func (s *Service) reverseAddOnLine(ctx context.Context, addOnSubID snowflake.ID, outcome *checkoutdomain.RefundOutcome) error {
	addOnSub, err := s.addOnSubs.FindByID(ctx, addOnSubID)
	if err != nil {
		return err
	}
	if addOnSub == nil || addOnSub.Status != checkoutdomain.AddOnStatusActive {
		return nil
	}

	now := s.clock.Now().UTC()
	addOnSub.Status = checkoutdomain.AddOnStatusCancelled
	addOnSub.CancelledAt = &now
	addOnSub.UpdatedAt = now

	if err := s.addOnSubs.Save(ctx, addOnSub); err != nil {
		return fmt.Errorf("refund: cancel add-on %d: %w", addOnSubID, err)
	}

	outcome.AddOnsCancelled = append(outcome.AddOnsCancelled, addOnSub.ID)
	return nil
}

var _ checkoutdomain.Service = (*Service)(nil)
