package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ProrationResult reports the credit for unused time on the current plan
// and what is still due when switching plans mid-period.
type ProrationResult struct {
	Credit        decimal.Decimal
	AmountDue     decimal.Decimal
	Currency      string
	DaysRemaining int
}

type Service interface {
	// StartTrial opens a TRIALING subscription on a plan that offers a
	// trial. Each user gets at most one trial, ever.
	StartTrial(ctx context.Context, userID, planID snowflake.ID) (*Subscription, error)

	// Activate moves a TRIALING or PENDING subscription to ACTIVE and
	// stamps the paid period end from the plan's billing period.
	Activate(ctx context.Context, id snowflake.ID) (*Subscription, error)

	Pause(ctx context.Context, id snowflake.ID) (*Subscription, error)
	// Resume reopens a PAUSED subscription and pushes ExpiresAt out by the
	// time spent paused.
	Resume(ctx context.Context, id snowflake.ID) (*Subscription, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Subscription, error)

	// Expire sweeps a due subscription to EXPIRED.
	Expire(ctx context.Context, id snowflake.ID) (*Subscription, error)

	// QueuePlanChange records a plan swap that applies when the next
	// renewal invoice is paid.
	QueuePlanChange(ctx context.Context, id, newPlanID snowflake.ID) (*Subscription, error)
	// ChangePlanNow swaps the plan immediately and drops any queued swap.
	ChangePlanNow(ctx context.Context, id, newPlanID snowflake.ID) (*Subscription, error)

	// CalculateProration prices an immediate plan change: credit for the
	// unused days on the current plan and the amount still due for the
	// new one.
	CalculateProration(ctx context.Context, id, newPlanID snowflake.ID) (*ProrationResult, error)

	Get(ctx context.Context, id snowflake.ID) (*Subscription, error)
	FindByUser(ctx context.Context, userID snowflake.ID) ([]Subscription, error)
	FindActiveByUser(ctx context.Context, userID snowflake.ID) (*Subscription, error)
	FindExpiring(ctx context.Context, days int) ([]Subscription, error)

	// ExpireDue expires everything past its period end and returns the
	// swept set.
	ExpireDue(ctx context.Context) ([]Subscription, error)
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrTrialAlreadyUsed     = errors.New("trial_already_used")
	ErrTrialNotOffered      = errors.New("trial_not_offered")
	ErrPlanInactive         = errors.New("plan_inactive")
	ErrSamePlan             = errors.New("same_plan")
	ErrNotDue               = errors.New("not_due_for_expiry")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrNoActivePeriod       = errors.New("no_active_period")
)
