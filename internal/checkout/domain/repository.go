package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type AddOnSubscriptionRepository interface {
	Insert(ctx context.Context, sub *AddOnSubscription) error
	FindByID(ctx context.Context, id snowflake.ID) (*AddOnSubscription, error)
	FindByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]AddOnSubscription, error)
	// Save persists the add-on subscription guarded by its optimistic
	// version.
	Save(ctx context.Context, sub *AddOnSubscription) error
}
