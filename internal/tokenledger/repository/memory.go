package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"
	tokendomain "github.com/luminapay/lumina/internal/tokenledger/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

// memoryRepo is the in-memory ledger double. SaveBalance enforces the same
// optimistic-version check as the gorm adapter so balance races surface
// identically in tests.
type memoryRepo struct {
	mu           sync.Mutex
	balances     map[snowflake.ID]tokendomain.TokenBalance
	transactions []tokendomain.TokenTransaction
}

func ProvideMemory() tokendomain.Repository {
	return &memoryRepo{balances: make(map[snowflake.ID]tokendomain.TokenBalance)}
}

func (r *memoryRepo) FindBalance(ctx context.Context, userID snowflake.ID) (*tokendomain.TokenBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.balances {
		if b.UserID == userID {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) CreateBalance(ctx context.Context, balance *tokendomain.TokenBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.balances {
		if b.UserID == balance.UserID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.balances[balance.ID] = *balance
	return nil
}

func (r *memoryRepo) SaveBalance(ctx context.Context, balance *tokendomain.TokenBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.balances[balance.ID]
	if !ok || stored.Version != balance.Version {
		return repository.ErrConcurrentModification
	}
	balance.Version++
	r.balances[balance.ID] = *balance
	return nil
}

func (r *memoryRepo) AppendTransaction(ctx context.Context, tx *tokendomain.TokenTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions = append(r.transactions, *tx)
	return nil
}

func (r *memoryRepo) FindTransactions(ctx context.Context, userID snowflake.ID, limit, offset int) ([]tokendomain.TokenTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []tokendomain.TokenTransaction
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	// Newest first, matching the persisted ordering.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) SumTransactions(ctx context.Context, userID snowflake.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			total += tx.Amount
		}
	}
	return total, nil
}

var _ tokendomain.Repository = (*memoryRepo)(nil)

type memoryPurchaseRepo struct {
	mu        sync.Mutex
	purchases map[snowflake.ID]tokendomain.TokenBundlePurchase
}

func ProvideMemoryPurchases() tokendomain.PurchaseRepository {
	return &memoryPurchaseRepo{purchases: make(map[snowflake.ID]tokendomain.TokenBundlePurchase)}
}

func (r *memoryPurchaseRepo) Insert(ctx context.Context, purchase *tokendomain.TokenBundlePurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.purchases[purchase.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.purchases[purchase.ID] = *purchase
	return nil
}

func (r *memoryPurchaseRepo) FindByID(ctx context.Context, id snowflake.ID) (*tokendomain.TokenBundlePurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.purchases[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (r *memoryPurchaseRepo) FindByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]tokendomain.TokenBundlePurchase, error) {
	return r.find(func(p tokendomain.TokenBundlePurchase) bool {
		return p.InvoiceID != nil && *p.InvoiceID == invoiceID
	}), nil
}

func (r *memoryPurchaseRepo) FindByUser(ctx context.Context, userID snowflake.ID) ([]tokendomain.TokenBundlePurchase, error) {
	out := r.find(func(p tokendomain.TokenBundlePurchase) bool { return p.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryPurchaseRepo) Save(ctx context.Context, purchase *tokendomain.TokenBundlePurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.purchases[purchase.ID]
	if !ok || stored.Version != purchase.Version {
		return repository.ErrConcurrentModification
	}
	purchase.Version++
	r.purchases[purchase.ID] = *purchase
	return nil
}

func (r *memoryPurchaseRepo) find(match func(tokendomain.TokenBundlePurchase) bool) []tokendomain.TokenBundlePurchase {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []tokendomain.TokenBundlePurchase
	for _, p := range r.purchases {
		if match(p) {
			out = append(out, p)
		}
	}
	return out
}

var _ tokendomain.PurchaseRepository = (*memoryPurchaseRepo)(nil)
