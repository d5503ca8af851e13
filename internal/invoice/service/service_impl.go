package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/luminapay/lumina/internal/clock"
	"github.com/luminapay/lumina/internal/config"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	"github.com/luminapay/lumina/internal/invoice/format"
	"github.com/luminapay/lumina/internal/observability/metrics"
	"github.com/luminapay/lumina/pkg/db"
	"github.com/luminapay/lumina/pkg/money"
	"github.com/luminapay/lumina/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Service struct {
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	transactor repository.Transactor
	repo       invoicedomain.Repository
	billingCfg *config.BillingConfigHolder
	metrics    *metrics.BillingMetrics
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Transactor repository.Transactor
	Repo       invoicedomain.Repository
	BillingCfg *config.BillingConfigHolder
	Metrics    *metrics.BillingMetrics `optional:"true"`
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		transactor: p.Transactor,
		repo:       p.Repo,
		billingCfg: p.BillingCfg,
		metrics:    p.Metrics,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	if req.UserID == 0 {
		return nil, invoicedomain.ErrInvalidUser
	}
	if len(req.LineItems) == 0 {
		return nil, invoicedomain.ErrMissingLineItems
	}
	if req.TaxAmount.IsNegative() {
		return nil, fmt.Errorf("tax amount: %w", invoicedomain.ErrInvalidAmount)
	}

	cfg := s.billingCfg.Get()

	currency := req.Currency
	if currency == "" {
		currency = cfg.DefaultCurrency
	}
	dueDays := req.DueDays
	if dueDays <= 0 {
		dueDays = cfg.DefaultDueDays
	}

	subtotal := money.Zero(currency)
	for i, line := range req.LineItems {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("line %d: %w", i, invoicedomain.ErrInvalidQuantity)
		}
		unit, err := money.New(line.UnitPrice, currency)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		if unit.IsNegative() || line.TotalPrice.IsNegative() {
			return nil, fmt.Errorf("line %d: %w", i, invoicedomain.ErrInvalidAmount)
		}
		if !line.TotalPrice.Equal(unit.MulInt(int64(line.Quantity)).Amount) {
			return nil, fmt.Errorf("line %d: %w", i, invoicedomain.ErrLineTotalMismatch)
		}
		subtotal, err = subtotal.Add(money.Money{Amount: line.TotalPrice, Currency: currency})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
	}

	now := s.clock.Now().UTC()
	expiresAt := now.AddDate(0, 0, dueDays)

	invoice := &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		UserID:         req.UserID,
		SubscriptionID: req.SubscriptionID,
		PlanID:         req.PlanID,
		Status:         invoicedomain.InvoiceStatusPending,
		Subtotal:       subtotal.Amount,
		TaxAmount:      req.TaxAmount,
		TotalAmount:    subtotal.Amount.Add(req.TaxAmount),
		Currency:       currency,
		InvoicedAt:     now,
		ExpiresAt:      &expiresAt,
		Metadata:       datatypes.JSONMap(req.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for i, line := range req.LineItems {
		invoice.LineItems = append(invoice.LineItems, invoicedomain.InvoiceLineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			ItemType:    line.ItemType,
			ItemID:      line.ItemID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  line.TotalPrice,
			Position:    i,
			CreatedAt:   now,
		})
	}

	if err := s.insertWithUniqueNumber(ctx, invoice, cfg.NumberRetryBudget); err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceTransition(string(invoicedomain.InvoiceStatusPending))
	s.log.Info("invoice created",
		zap.Int64("invoice_id", invoice.ID.Int64()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total", invoice.TotalAmount.String()),
	)

	return invoice, nil
}

// insertWithUniqueNumber retries insertion with a fresh random suffix until
// the unique index accepts the number or the budget runs out. Each attempt
// runs in its own nested transaction: postgres aborts the whole transaction
// on a unique violation, so the savepoint rollback keeps any enclosing
// checkout transaction usable for the next attempt.
func (s *Service) insertWithUniqueNumber(ctx context.Context, invoice *invoicedomain.Invoice, budget int) error {
	for attempt := 0; attempt < budget; attempt++ {
		number, err := format.FormatInvoiceNumber(
			format.DefaultInvoiceNumberTemplate,
			invoice.InvoicedAt,
			format.RandomSuffix(),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", invoicedomain.ErrNumberGeneration, err)
		}

		invoice.InvoiceNumber = number
		err = s.transactor.RunInTx(ctx, func(ctx context.Context) error {
			return s.repo.Insert(ctx, invoice)
		})
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}

		s.metrics.RecordNumberCollision()
		s.log.Warn("invoice number collision",
			zap.String("invoice_number", number),
			zap.Int("attempt", attempt+1),
		)
	}

	return fmt.Errorf("%w: retry budget exhausted after %d attempts", invoicedomain.ErrNumberGeneration, budget)
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, fmt.Errorf("invoice %d: %w", id, invoicedomain.ErrInvoiceNotFound)
	}
	return invoice, nil
}

// MarkPaid implements domain.Service. Only a PENDING invoice can be paid;
// paying a PAID invoice reports the distinct already-paid error so callers
// can treat duplicate payment callbacks as benign.
func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, paymentRef, paymentMethod string) (*invoicedomain.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch invoice.Status {
	case invoicedomain.InvoiceStatusPending:
	case invoicedomain.InvoiceStatusPaid:
		return nil, fmt.Errorf("invoice %d: %w", id, invoicedomain.ErrAlreadyPaid)
	default:
		return nil, fmt.Errorf("invoice %d: mark_paid from %s: %w", id, invoice.Status, invoicedomain.ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	invoice.Status = invoicedomain.InvoiceStatusPaid
	invoice.PaidAt = &now
	invoice.PaymentRef = &paymentRef
	invoice.PaymentMethod = &paymentMethod
	invoice.UpdatedAt = now

	if err := s.repo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("invoice %d: mark_paid: %w", id, err)
	}

	s.metrics.RecordInvoiceTransition(string(invoicedomain.InvoiceStatusPaid))
	s.log.Info("invoice paid",
		zap.Int64("invoice_id", id.Int64()),
		zap.String("payment_ref", paymentRef),
	)

	return invoice, nil
}

// MarkFailed implements domain.Service.
func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.transitionFromPending(ctx, id, invoicedomain.InvoiceStatusFailed, "mark_failed")
}

// MarkCancelled implements domain.Service.
func (s *Service) MarkCancelled(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.transitionFromPending(ctx, id, invoicedomain.InvoiceStatusCancelled, "mark_cancelled")
}

func (s *Service) transitionFromPending(ctx context.Context, id snowflake.ID, target invoicedomain.InvoiceStatus, operation string) (*invoicedomain.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if invoice.Status != invoicedomain.InvoiceStatusPending {
		return nil, fmt.Errorf("invoice %d: %s from %s: %w", id, operation, invoice.Status, invoicedomain.ErrInvalidTransition)
	}

	invoice.Status = target
	invoice.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("invoice %d: %s: %w", id, operation, err)
	}

	s.metrics.RecordInvoiceTransition(string(target))
	s.log.Info("invoice transitioned",
		zap.Int64("invoice_id", id.Int64()),
		zap.String("status", string(target)),
	)

	return invoice, nil
}

// MarkRefunded implements domain.Service. Only a PAID invoice can be
// refunded.
func (s *Service) MarkRefunded(ctx context.Context, id snowflake.ID, refundRef string) (*invoicedomain.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if invoice.Status != invoicedomain.InvoiceStatusPaid {
		return nil, fmt.Errorf("invoice %d: mark_refunded from %s: %w", id, invoice.Status, invoicedomain.ErrNotPaid)
	}

	now := s.clock.Now().UTC()
	invoice.Status = invoicedomain.InvoiceStatusRefunded
	invoice.RefundRef = &refundRef
	invoice.UpdatedAt = now

	if err := s.repo.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("invoice %d: mark_refunded: %w", id, err)
	}

	s.metrics.RecordInvoiceTransition(string(invoicedomain.InvoiceStatusRefunded))
	s.log.Info("invoice refunded",
		zap.Int64("invoice_id", id.Int64()),
		zap.String("refund_ref", refundRef),
	)

	return invoice, nil
}

// FindByUser implements domain.Service.
func (s *Service) FindByUser(ctx context.Context, userID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return s.repo.FindByUser(ctx, userID)
}

// FindBySubscription implements domain.Service.
func (s *Service) FindBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return s.repo.FindBySubscription(ctx, subscriptionID)
}

// FindPending implements domain.Service.
func (s *Service) FindPending(ctx context.Context) ([]invoicedomain.Invoice, error) {
	return s.repo.FindByStatus(ctx, invoicedomain.InvoiceStatusPending)
}

// FindOverdue implements domain.Service.
func (s *Service) FindOverdue(ctx context.Context) ([]invoicedomain.Invoice, error) {
	return s.repo.FindOverdue(ctx, s.clock.Now().UTC())
}

var _ invoicedomain.Service = (*Service)(nil)
