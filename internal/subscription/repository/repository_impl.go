package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	subscriptions *repository.Store[subscriptiondomain.Subscription]
}

func Provide(db *gorm.DB) subscriptiondomain.Repository {
	return &repo{subscriptions: repository.ProvideStore[subscriptiondomain.Subscription](db)}
}

func (r *repo) Insert(ctx context.Context, subscription *subscriptiondomain.Subscription) error {
	return r.subscriptions.Create(ctx, subscription)
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.subscriptions.FindOne(ctx, &subscriptiondomain.Subscription{ID: id})
}

func (r *repo) Save(ctx context.Context, subscription *subscriptiondomain.Subscription) error {
	fromVersion := subscription.Version
	subscription.Version++
	return r.subscriptions.SaveVersioned(ctx, subscription, fromVersion)
}

func (r *repo) FindByUser(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return r.subscriptions.Find(ctx, &subscriptiondomain.Subscription{UserID: userID},
		repository.WithOrder("started_at DESC"),
	)
}

func (r *repo) FindActiveByUser(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.subscriptions.FindOne(ctx, &subscriptiondomain.Subscription{
		UserID: userID,
		Status: subscriptiondomain.SubscriptionStatusActive,
	})
}

func (r *repo) FindExpiring(ctx context.Context, now, until time.Time) ([]subscriptiondomain.Subscription, error) {
	return r.subscriptions.Find(ctx, &subscriptiondomain.Subscription{},
		repository.WithCondition("status IN ?", []subscriptiondomain.SubscriptionStatus{
			subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusPaused,
		}),
		repository.WithCondition("expires_at IS NOT NULL AND expires_at >= ? AND expires_at <= ?", now, until),
		repository.WithOrder("expires_at ASC"),
	)
}

func (r *repo) FindDue(ctx context.Context, now time.Time) ([]subscriptiondomain.Subscription, error) {
	return r.subscriptions.Find(ctx, &subscriptiondomain.Subscription{},
		repository.WithCondition(
			"(status = ? AND trial_end_at IS NOT NULL AND trial_end_at < ?) OR "+
				"(status IN ? AND expires_at IS NOT NULL AND expires_at < ?)",
			subscriptiondomain.SubscriptionStatusTrialing, now,
			[]subscriptiondomain.SubscriptionStatus{
				subscriptiondomain.SubscriptionStatusPending,
				subscriptiondomain.SubscriptionStatusActive,
				subscriptiondomain.SubscriptionStatusPaused,
			}, now,
		),
		repository.WithOrder("id ASC"),
	)
}
