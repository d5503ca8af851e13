package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LineItemInput describes one line on a new invoice. TotalPrice must equal
// UnitPrice * Quantity.
type LineItemInput struct {
	ItemType    LineItemType
	ItemID      snowflake.ID
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

type CreateInvoiceRequest struct {
	UserID         snowflake.ID
	SubscriptionID *snowflake.ID
	PlanID         *snowflake.ID
	LineItems      []LineItemInput
	TaxAmount      decimal.Decimal
	Currency       string
	DueDays        int
	Metadata       map[string]any
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (*Invoice, error)

	MarkPaid(ctx context.Context, id snowflake.ID, paymentRef, paymentMethod string) (*Invoice, error)
	MarkFailed(ctx context.Context, id snowflake.ID) (*Invoice, error)
	MarkCancelled(ctx context.Context, id snowflake.ID) (*Invoice, error)
	MarkRefunded(ctx context.Context, id snowflake.ID, refundRef string) (*Invoice, error)

	FindByUser(ctx context.Context, userID snowflake.ID) ([]Invoice, error)
	FindBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]Invoice, error)
	FindPending(ctx context.Context) ([]Invoice, error)
	FindOverdue(ctx context.Context) ([]Invoice, error)
}

var (
	ErrInvoiceNotFound   = errors.New("invoice_not_found")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrAlreadyPaid       = errors.New("invoice_already_paid")
	ErrNotPaid           = errors.New("invoice_not_paid")
	ErrMissingLineItems  = errors.New("missing_line_items")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrLineTotalMismatch = errors.New("line_total_mismatch")
	ErrNumberGeneration  = errors.New("invoice_number_generation")
	ErrInvalidUser       = errors.New("invalid_user")
)
