package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RecordRequest struct {
	UserID      snowflake.ID
	Amount      int64
	Type        TokenTransactionType
	ReferenceID *snowflake.ID
	Description string
}

type Service interface {
	// Record appends a transaction and moves the balance as one atomic
	// unit. A debit past the available balance fails without writing.
	Record(ctx context.Context, req RecordRequest) (*TokenTransaction, error)

	// CreditFromPurchase credits a completing purchase's tokens exactly
	// once. A second call on an already-credited purchase is a no-op.
	CreditFromPurchase(ctx context.Context, purchaseID snowflake.ID, invoiceID snowflake.ID) (*TokenBundlePurchase, error)

	DebitForUsage(ctx context.Context, userID snowflake.ID, amount int64, description string) (*TokenTransaction, error)
	Refund(ctx context.Context, userID snowflake.ID, amount int64, referenceID snowflake.ID) (*TokenTransaction, error)

	// ReverseForRefund debits previously credited tokens, clamped at the
	// available balance. Returns the amount actually debited.
	ReverseForRefund(ctx context.Context, userID snowflake.ID, amount int64, referenceID snowflake.ID) (int64, error)

	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
	Transactions(ctx context.Context, userID snowflake.ID, limit, offset int) ([]TokenTransaction, error)
}

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidType         = errors.New("invalid_transaction_type")
	ErrPurchaseNotFound    = errors.New("purchase_not_found")
	ErrPurchaseNotPending  = errors.New("purchase_not_pending")
)
