package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

// memoryRepo is the in-memory double for tests and embedding callers. It
// honors the same contracts as the gorm adapter: duplicate invoice numbers
// fail Insert with a duplicate-key error and Save is version-checked.
type memoryRepo struct {
	mu       sync.Mutex
	invoices map[snowflake.ID]invoicedomain.Invoice
	numbers  map[string]snowflake.ID
}

func ProvideMemory() invoicedomain.Repository {
	return &memoryRepo{
		invoices: make(map[snowflake.ID]invoicedomain.Invoice),
		numbers:  make(map[string]snowflake.ID),
	}
}

func cloneInvoice(in invoicedomain.Invoice) invoicedomain.Invoice {
	out := in
	out.LineItems = append([]invoicedomain.InvoiceLineItem(nil), in.LineItems...)
	return out
}

func (r *memoryRepo) Insert(ctx context.Context, invoice *invoicedomain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.numbers[invoice.InvoiceNumber]; taken {
		return gorm.ErrDuplicatedKey
	}
	if _, exists := r.invoices[invoice.ID]; exists {
		return gorm.ErrDuplicatedKey
	}

	r.invoices[invoice.ID] = cloneInvoice(*invoice)
	r.numbers[invoice.InvoiceNumber] = invoice.ID
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	out := cloneInvoice(stored)
	return &out, nil
}

func (r *memoryRepo) Save(ctx context.Context, invoice *invoicedomain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.invoices[invoice.ID]
	if !ok || stored.Version != invoice.Version {
		return repository.ErrConcurrentModification
	}
	invoice.Version++
	r.invoices[invoice.ID] = cloneInvoice(*invoice)
	return nil
}

func (r *memoryRepo) FindByUser(ctx context.Context, userID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return r.find(func(inv invoicedomain.Invoice) bool { return inv.UserID == userID }, byInvoicedAtDesc), nil
}

func (r *memoryRepo) FindBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return r.find(func(inv invoicedomain.Invoice) bool {
		return inv.SubscriptionID != nil && *inv.SubscriptionID == subscriptionID
	}, byInvoicedAtDesc), nil
}

func (r *memoryRepo) FindByStatus(ctx context.Context, status invoicedomain.InvoiceStatus) ([]invoicedomain.Invoice, error) {
	return r.find(func(inv invoicedomain.Invoice) bool { return inv.Status == status }, byInvoicedAtAsc), nil
}

func (r *memoryRepo) FindOverdue(ctx context.Context, now time.Time) ([]invoicedomain.Invoice, error) {
	return r.find(func(inv invoicedomain.Invoice) bool {
		return inv.Status == invoicedomain.InvoiceStatusPending &&
			inv.ExpiresAt != nil && inv.ExpiresAt.Before(now)
	}, byInvoicedAtAsc), nil
}

func byInvoicedAtDesc(a, b invoicedomain.Invoice) bool { return a.InvoicedAt.After(b.InvoicedAt) }
func byInvoicedAtAsc(a, b invoicedomain.Invoice) bool  { return a.InvoicedAt.Before(b.InvoicedAt) }

func (r *memoryRepo) find(match func(invoicedomain.Invoice) bool, less func(a, b invoicedomain.Invoice) bool) []invoicedomain.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []invoicedomain.Invoice
	for _, inv := range r.invoices {
		if match(inv) {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

var _ invoicedomain.Repository = (*memoryRepo)(nil)
