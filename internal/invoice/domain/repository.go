package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// Insert stores the invoice and its line items atomically. A duplicate
	// invoice number surfaces as a duplicate-key error.
	Insert(ctx context.Context, invoice *Invoice) error
	FindByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	// Save persists the invoice guarded by its optimistic version.
	Save(ctx context.Context, invoice *Invoice) error
	FindByUser(ctx context.Context, userID snowflake.ID) ([]Invoice, error)
	FindBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]Invoice, error)
	FindByStatus(ctx context.Context, status InvoiceStatus) ([]Invoice, error)
	FindOverdue(ctx context.Context, now time.Time) ([]Invoice, error)
}
