package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Insert(ctx context.Context, subscription *Subscription) error
	FindByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	// Save persists the subscription guarded by its optimistic version.
	Save(ctx context.Context, subscription *Subscription) error
	FindByUser(ctx context.Context, userID snowflake.ID) ([]Subscription, error)
	FindActiveByUser(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	// FindExpiring returns non-terminal subscriptions whose period ends
	// inside [now, until].
	FindExpiring(ctx context.Context, now, until time.Time) ([]Subscription, error)
	// FindDue returns everything DueForExpiry at now.
	FindDue(ctx context.Context, now time.Time) ([]Subscription, error)
}
