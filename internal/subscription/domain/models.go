// Package domain contains subscription persistence models and the
// lifecycle service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "TRIALING"
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPaused    SubscriptionStatus = "PAUSED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// Terminal reports whether no further transition leaves this status.
func (s SubscriptionStatus) Terminal() bool {
	switch s {
	case SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Subscription captures a user's plan agreement. PendingPlanID holds a
// queued plan swap that applies when the next renewal invoice is paid.
// At most one of PausedAt and CancelledAt is set.
type Subscription struct {
	ID                     snowflake.ID       `gorm:"primaryKey"`
	UserID                 snowflake.ID       `gorm:"not null;index"`
	PlanID                 snowflake.ID       `gorm:"not null"`
	PendingPlanID          *snowflake.ID      `gorm:""`
	Status                 SubscriptionStatus `gorm:"type:text;not null"`
	StartedAt              time.Time          `gorm:"not null"`
	ExpiresAt              *time.Time         `gorm:""`
	PausedAt               *time.Time         `gorm:""`
	CancelledAt            *time.Time         `gorm:""`
	TrialEndAt             *time.Time         `gorm:""`
	ProviderSubscriptionID *string            `gorm:"type:text"`
	Metadata               datatypes.JSONMap  `gorm:"type:jsonb"`
	Version                int64              `gorm:"not null;default:0"`
	CreatedAt              time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// DueForExpiry reports whether the subscription should be swept to EXPIRED
// at now. Trials run against TrialEndAt, everything else against ExpiresAt.
func (s Subscription) DueForExpiry(now time.Time) bool {
	if s.Status.Terminal() {
		return false
	}
	if s.Status == SubscriptionStatusTrialing {
		return s.TrialEndAt != nil && now.After(*s.TrialEndAt)
	}
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
