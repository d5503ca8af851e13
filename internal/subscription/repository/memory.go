package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

// memoryRepo mirrors the gorm adapter for tests and embedding callers,
// including the optimistic-version check on Save.
type memoryRepo struct {
	mu            sync.Mutex
	subscriptions map[snowflake.ID]subscriptiondomain.Subscription
}

func ProvideMemory() subscriptiondomain.Repository {
	return &memoryRepo{subscriptions: make(map[snowflake.ID]subscriptiondomain.Subscription)}
}

func (r *memoryRepo) Insert(ctx context.Context, subscription *subscriptiondomain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subscriptions[subscription.ID]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.subscriptions[subscription.ID] = *subscription
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subscriptions[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (r *memoryRepo) Save(ctx context.Context, subscription *subscriptiondomain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.subscriptions[subscription.ID]
	if !ok || stored.Version != subscription.Version {
		return repository.ErrConcurrentModification
	}
	subscription.Version++
	r.subscriptions[subscription.ID] = *subscription
	return nil
}

func (r *memoryRepo) FindByUser(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	out := r.find(func(s subscriptiondomain.Subscription) bool { return s.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *memoryRepo) FindActiveByUser(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subscriptions {
		if s.UserID == userID && s.Status == subscriptiondomain.SubscriptionStatusActive {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) FindExpiring(ctx context.Context, now, until time.Time) ([]subscriptiondomain.Subscription, error) {
	out := r.find(func(s subscriptiondomain.Subscription) bool {
		if s.Status != subscriptiondomain.SubscriptionStatusActive &&
			s.Status != subscriptiondomain.SubscriptionStatusPaused {
			return false
		}
		return s.ExpiresAt != nil && !s.ExpiresAt.Before(now) && !s.ExpiresAt.After(until)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

func (r *memoryRepo) FindDue(ctx context.Context, now time.Time) ([]subscriptiondomain.Subscription, error) {
	out := r.find(func(s subscriptiondomain.Subscription) bool {
		if s.Status == subscriptiondomain.SubscriptionStatusTrialing {
			return s.TrialEndAt != nil && s.TrialEndAt.Before(now)
		}
		switch s.Status {
		case subscriptiondomain.SubscriptionStatusPending,
			subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusPaused:
			return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
		}
		return false
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) find(match func(subscriptiondomain.Subscription) bool) []subscriptiondomain.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []subscriptiondomain.Subscription
	for _, s := range r.subscriptions {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

var _ subscriptiondomain.Repository = (*memoryRepo)(nil)
