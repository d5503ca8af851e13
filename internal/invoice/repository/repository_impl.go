package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db       *gorm.DB
	invoices *repository.Store[invoicedomain.Invoice]
}

func Provide(db *gorm.DB) invoicedomain.Repository {
	return &repo{
		db:       db,
		invoices: repository.ProvideStore[invoicedomain.Invoice](db),
	}
}

func (r *repo) Insert(ctx context.Context, invoice *invoicedomain.Invoice) error {
	// gorm persists the line items through the association in one statement
	// batch inside the surrounding transaction.
	return repository.DBFromContext(ctx, r.db).WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.invoices.FindOne(ctx, &invoicedomain.Invoice{ID: id},
		repository.WithPreload("LineItems"),
	)
}

func (r *repo) Save(ctx context.Context, invoice *invoicedomain.Invoice) error {
	fromVersion := invoice.Version
	invoice.Version++
	return r.invoices.SaveVersioned(ctx, invoice, fromVersion)
}

func (r *repo) FindByUser(ctx context.Context, userID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return r.invoices.Find(ctx, &invoicedomain.Invoice{UserID: userID},
		repository.WithPreload("LineItems"),
		repository.WithOrder("invoiced_at DESC"),
	)
}

func (r *repo) FindBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return r.invoices.Find(ctx, &invoicedomain.Invoice{SubscriptionID: &subscriptionID},
		repository.WithPreload("LineItems"),
		repository.WithOrder("invoiced_at DESC"),
	)
}

func (r *repo) FindByStatus(ctx context.Context, status invoicedomain.InvoiceStatus) ([]invoicedomain.Invoice, error) {
	return r.invoices.Find(ctx, &invoicedomain.Invoice{Status: status},
		repository.WithOrder("invoiced_at ASC"),
	)
}

func (r *repo) FindOverdue(ctx context.Context, now time.Time) ([]invoicedomain.Invoice, error) {
	return r.invoices.Find(ctx, &invoicedomain.Invoice{Status: invoicedomain.InvoiceStatusPending},
		repository.WithCondition("expires_at IS NOT NULL AND expires_at < ?", now),
		repository.WithOrder("expires_at ASC"),
	)
}
