package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	balances     *repository.Store[tokendomain.TokenBalance]
	transactions *repository.Store[tokendomain.TokenTransaction]
}

func Provide(db *gorm.DB) tokendomain.Repository {
	return &repo{
		balances:     repository.ProvideStore[tokendomain.TokenBalance](db),
		transactions: repository.ProvideStore[tokendomain.TokenTransaction](db),
	}
}

func (r *repo) FindBalance(ctx context.Context, userID snowflake.ID) (*tokendomain.TokenBalance, error) {
	return r.balances.FindOne(ctx, &tokendomain.TokenBalance{UserID: userID})
}

func (r *repo) CreateBalance(ctx context.Context, balance *tokendomain.TokenBalance) error {
	return r.balances.Create(ctx, balance)
}

func (r *repo) SaveBalance(ctx context.Context, balance *tokendomain.TokenBalance) error {
	fromVersion := balance.Version
	balance.Version++
	return r.balances.SaveVersioned(ctx, balance, fromVersion)
}

func (r *repo) AppendTransaction(ctx context.Context, tx *tokendomain.TokenTransaction) error {
	return r.transactions.Create(ctx, tx)
}

func (r *repo) FindTransactions(ctx context.Context, userID snowflake.ID, limit, offset int) ([]tokendomain.TokenTransaction, error) {
	return r.transactions.Find(ctx, &tokendomain.TokenTransaction{UserID: userID},
		repository.WithOrder("created_at DESC, id DESC"),
		repository.WithLimitOffset(limit, offset),
	)
}

func (r *repo) SumTransactions(ctx context.Context, userID snowflake.ID) (int64, error) {
	var total int64
	err := r.transactions.DB(ctx).
		Model(&tokendomain.TokenTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

type purchaseRepo struct {
	purchases *repository.Store[tokendomain.TokenBundlePurchase]
}

func ProvidePurchases(db *gorm.DB) tokendomain.PurchaseRepository {
	return &purchaseRepo{purchases: repository.ProvideStore[tokendomain.TokenBundlePurchase](db)}
}

func (r *purchaseRepo) Insert(ctx context.Context, purchase *tokendomain.TokenBundlePurchase) error {
	return r.purchases.Create(ctx, purchase)
}

func (r *purchaseRepo) FindByID(ctx context.Context, id snowflake.ID) (*tokendomain.TokenBundlePurchase, error) {
	return r.purchases.FindOne(ctx, &tokendomain.TokenBundlePurchase{ID: id})
}

func (r *purchaseRepo) FindByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]tokendomain.TokenBundlePurchase, error) {
	return r.purchases.Find(ctx, &tokendomain.TokenBundlePurchase{InvoiceID: &invoiceID})
}

func (r *purchaseRepo) FindByUser(ctx context.Context, userID snowflake.ID) ([]tokendomain.TokenBundlePurchase, error) {
	return r.purchases.Find(ctx, &tokendomain.TokenBundlePurchase{UserID: userID},
		repository.WithOrder("created_at DESC"),
	)
}

func (r *purchaseRepo) Save(ctx context.Context, purchase *tokendomain.TokenBundlePurchase) error {
	fromVersion := purchase.Version
	purchase.Version++
	return r.purchases.SaveVersioned(ctx, purchase, fromVersion)
}
