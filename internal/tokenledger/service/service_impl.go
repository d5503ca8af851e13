package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/luminapay/lumina/internal/clock"
	"github.com/luminapay/lumina/internal/config"
	"github.com/luminapay/lumina/internal/observability/metrics"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	transactor repository.Transactor
	repo       tokendomain.Repository
	purchases  tokendomain.PurchaseRepository
	billingCfg *config.BillingConfigHolder
	metrics    *metrics.BillingMetrics
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Transactor repository.Transactor
	Repo       tokendomain.Repository
	Purchases  tokendomain.PurchaseRepository
	BillingCfg *config.BillingConfigHolder
	Metrics    *metrics.BillingMetrics `optional:"true"`
}

func NewService(p ServiceParam) tokendomain.Service {
	return &Service{
		log:        p.Log.Named("tokenledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		transactor: p.Transactor,
		repo:       p.Repo,
		purchases:  p.Purchases,
		billingCfg: p.BillingCfg,
		metrics:    p.Metrics,
	}
}

// Record implements domain.Service. The transaction append and the balance
// move commit together or not at all.
func (s *Service) Record(ctx context.Context, req tokendomain.RecordRequest) (*tokendomain.TokenTransaction, error) {
	if req.UserID == 0 {
		return nil, tokendomain.ErrInvalidUser
	}
	if req.Amount == 0 {
		return nil, tokendomain.ErrInvalidAmount
	}
	if !req.Type.Valid() {
		return nil, tokendomain.ErrInvalidType
	}

	var recorded *tokendomain.TokenTransaction
	err := s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		recorded, err = s.record(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLedgerTransaction(string(req.Type))
	return recorded, nil
}

// record assumes it runs inside a transaction.
func (s *Service) record(ctx context.Context, req tokendomain.RecordRequest) (*tokendomain.TokenTransaction, error) {
	now := s.clock.Now().UTC()

	balance, err := s.repo.FindBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = &tokendomain.TokenBalance{
			ID:        s.genID.Generate(),
			UserID:    req.UserID,
			Balance:   0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateBalance(ctx, balance); err != nil {
			return nil, err
		}
	}

	next := balance.Balance + req.Amount
	if next < 0 {
		s.metrics.RecordInsufficientBalance()
		return nil, fmt.Errorf("user %d: balance %d, requested %d: %w",
			req.UserID, balance.Balance, req.Amount, tokendomain.ErrInsufficientBalance)
	}

	tx := &tokendomain.TokenTransaction{
		ID:          s.genID.Generate(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Type:        req.Type,
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		CreatedAt:   now,
	}
	if err := s.repo.AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}

	balance.Balance = next
	balance.UpdatedAt = now
	if err := s.repo.SaveBalance(ctx, balance); err != nil {
		return nil, err
	}

	return tx, nil
}

// CreditFromPurchase implements domain.Service. Credits the purchase's
// tokens, completes the purchase, and links the invoice exactly once.
// Duplicate payment callbacks find TokensCredited already set and return
// the purchase unchanged.
func (s *Service) CreditFromPurchase(ctx context.Context, purchaseID snowflake.ID, invoiceID snowflake.ID) (*tokendomain.TokenBundlePurchase, error) {
	var result *tokendomain.TokenBundlePurchase

	err := s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		purchase, err := s.purchases.FindByID(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase == nil {
			return fmt.Errorf("purchase %d: %w", purchaseID, tokendomain.ErrPurchaseNotFound)
		}

		if purchase.TokensCredited {
			s.log.Info("tokens already credited, skipping",
				zap.Int64("purchase_id", purchaseID.Int64()),
			)
			result = purchase
			return nil
		}

		if purchase.Status != tokendomain.PurchaseStatusPending {
			return fmt.Errorf("purchase %d in %s: %w", purchaseID, purchase.Status, tokendomain.ErrPurchaseNotPending)
		}

		ref := invoiceID
		if _, err := s.record(ctx, tokendomain.RecordRequest{
			UserID:      purchase.UserID,
			Amount:      purchase.TokenAmount,
			Type:        tokendomain.TransactionTypePurchase,
			ReferenceID: &ref,
			Description: "Token bundle purchase",
		}); err != nil {
			return fmt.Errorf("purchase %d: credit: %w", purchaseID, err)
		}

		now := s.clock.Now().UTC()
		purchase.TokensCredited = true
		purchase.Status = tokendomain.PurchaseStatusCompleted
		purchase.CompletedAt = &now
		if purchase.InvoiceID == nil {
			purchase.InvoiceID = &ref
		}
		purchase.UpdatedAt = now

		if err := s.purchases.Save(ctx, purchase); err != nil {
			return fmt.Errorf("purchase %d: save: %w", purchaseID, err)
		}

		result = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLedgerTransaction(string(tokendomain.TransactionTypePurchase))
	return result, nil
}

// DebitForUsage implements domain.Service.
func (s *Service) DebitForUsage(ctx context.Context, userID snowflake.ID, amount int64, description string) (*tokendomain.TokenTransaction, error) {
	if amount <= 0 {
		return nil, tokendomain.ErrInvalidAmount
	}
	return s.Record(ctx, tokendomain.RecordRequest{
		UserID:      userID,
		Amount:      -amount,
		Type:        tokendomain.TransactionTypeUsage,
		Description: description,
	})
}

// Refund implements domain.Service.
func (s *Service) Refund(ctx context.Context, userID snowflake.ID, amount int64, referenceID snowflake.ID) (*tokendomain.TokenTransaction, error) {
	if amount <= 0 {
		return nil, tokendomain.ErrInvalidAmount
	}
	return s.Record(ctx, tokendomain.RecordRequest{
		UserID:      userID,
		Amount:      amount,
		Type:        tokendomain.TransactionTypeRefund,
		ReferenceID: &referenceID,
		Description: "Refund credit",
	})
}

// ReverseForRefund implements domain.Service. Debits up to amount tokens,
// clamped at the user's available balance, and reports the actual debit.
func (s *Service) ReverseForRefund(ctx context.Context, userID snowflake.ID, amount int64, referenceID snowflake.ID) (int64, error) {
	if amount <= 0 {
		return 0, tokendomain.ErrInvalidAmount
	}

	var debited int64
	err := s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		balance, err := s.repo.FindBalance(ctx, userID)
		if err != nil {
			return err
		}

		available := int64(0)
		if balance != nil {
			available = balance.Balance
		}

		debited = amount
		if debited > available {
			debited = available
		}
		if debited == 0 {
			return nil
		}

		ref := referenceID
		_, err = s.record(ctx, tokendomain.RecordRequest{
			UserID:      userID,
			Amount:      -debited,
			Type:        tokendomain.TransactionTypeRefund,
			ReferenceID: &ref,
			Description: "Refund reversal",
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	if debited > 0 {
		s.metrics.RecordLedgerTransaction(string(tokendomain.TransactionTypeRefund))
		s.log.Info("refund reversal debited tokens",
			zap.Int64("user_id", userID.Int64()),
			zap.Int64("requested", amount),
			zap.Int64("debited", debited),
		)
	}

	return debited, nil
}

// Balance implements domain.Service. Unknown users hold a zero balance.
func (s *Service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	balance, err := s.repo.FindBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if balance == nil {
		return 0, nil
	}
	return balance.Balance, nil
}

// Transactions implements domain.Service.
func (s *Service) Transactions(ctx context.Context, userID snowflake.ID, limit, offset int) ([]tokendomain.TokenTransaction, error) {
	pageLimit := s.billingCfg.Get().TransactionPageLimit
	if limit <= 0 || limit > pageLimit {
		limit = pageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.FindTransactions(ctx, userID, limit, offset)
}

var _ tokendomain.Service = (*Service)(nil)
