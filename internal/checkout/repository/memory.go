package repository

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/luminapay/lumina/internal/checkout/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type memoryAddOnSubRepo struct {
	mu   sync.Mutex
	subs map[snowflake.ID]checkoutdomain.AddOnSubscription
}

func ProvideMemoryAddOnSubscriptions() checkoutdomain.AddOnSubscriptionRepository {
	return &memoryAddOnSubRepo{subs: make(map[snowflake.ID]checkoutdomain.AddOnSubscription)}
}

func (r *memoryAddOnSubRepo) Insert(ctx context.Context, sub *checkoutdomain.AddOnSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[sub.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.subs[sub.ID] = *sub
	return nil
}

func (r *memoryAddOnSubRepo) FindByID(ctx context.Context, id snowflake.ID) (*checkoutdomain.AddOnSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (r *memoryAddOnSubRepo) FindByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]checkoutdomain.AddOnSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []checkoutdomain.AddOnSubscription
	for _, s := range r.subs {
		if s.InvoiceID != nil && *s.InvoiceID == invoiceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryAddOnSubRepo) Save(ctx context.Context, sub *checkoutdomain.AddOnSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subs[sub.ID]
	if !ok || stored.Version != sub.Version {
		return repository.ErrConcurrentModification
	}
	sub.Version++
	r.subs[sub.ID] = *sub
	return nil
}

var _ checkoutdomain.AddOnSubscriptionRepository = (*memoryAddOnSubRepo)(nil)
