package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	FindBalance(ctx context.Context, userID snowflake.ID) (*TokenBalance, error)
	CreateBalance(ctx context.Context, balance *TokenBalance) error
	// SaveBalance persists the balance guarded by its optimistic version.
	SaveBalance(ctx context.Context, balance *TokenBalance) error

	AppendTransaction(ctx context.Context, tx *TokenTransaction) error
	FindTransactions(ctx context.Context, userID snowflake.ID, limit, offset int) ([]TokenTransaction, error)
	SumTransactions(ctx context.Context, userID snowflake.ID) (int64, error)
}

type PurchaseRepository interface {
	Insert(ctx context.Context, purchase *TokenBundlePurchase) error
	FindByID(ctx context.Context, id snowflake.ID) (*TokenBundlePurchase, error)
	FindByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]TokenBundlePurchase, error)
	FindByUser(ctx context.Context, userID snowflake.ID) ([]TokenBundlePurchase, error)
	// Save persists the purchase guarded by its optimistic version.
	Save(ctx context.Context, purchase *TokenBundlePurchase) error
}
