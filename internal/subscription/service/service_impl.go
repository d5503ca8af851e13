package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
	"github.com/luminapay/lumina/internal/clock"
	"github.com/luminapay/lumina/internal/observability/metrics"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	"github.com/luminapay/lumina/pkg/money"
	"github.com/luminapay/lumina/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	transactor repository.Transactor
	repo       subscriptiondomain.Repository
	plans      catalogdomain.PlanRepository
	users      userdomain.Repository
	metrics    *metrics.BillingMetrics
}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Transactor repository.Transactor
	Repo       subscriptiondomain.Repository
	Plans      catalogdomain.PlanRepository
	Users      userdomain.Repository
	Metrics    *metrics.BillingMetrics `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		log:        p.Log.Named("subscription.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		transactor: p.Transactor,
		repo:       p.Repo,
		plans:      p.Plans,
		users:      p.Users,
		metrics:    p.Metrics,
	}
}

func (s *Service) activePlan(ctx context.Context, planID snowflake.ID) (*catalogdomain.Plan, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %d: %w", planID, catalogdomain.ErrPlanNotFound)
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %d: %w", planID, subscriptiondomain.ErrPlanInactive)
	}
	return plan, nil
}

// StartTrial implements domain.Service. The subscription insert and the
// user's one-time trial flag commit together.
func (s *Service) StartTrial(ctx context.Context, userID, planID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	plan, err := s.activePlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.TrialDays <= 0 {
		return nil, fmt.Errorf("plan %d: %w", planID, subscriptiondomain.ErrTrialNotOffered)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, subscriptiondomain.ErrInvalidUser)
	}
	if user.HasUsedTrial {
		return nil, fmt.Errorf("user %d: %w", userID, subscriptiondomain.ErrTrialAlreadyUsed)
	}

	now := s.clock.Now().UTC()
	trialEnd := now.AddDate(0, 0, plan.TrialDays)

	subscription := &subscriptiondomain.Subscription{
		ID:         s.genID.Generate(),
		UserID:     userID,
		PlanID:     planID,
		Status:     subscriptiondomain.SubscriptionStatusTrialing,
		StartedAt:  now,
		TrialEndAt: &trialEnd,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.transactor.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, subscription); err != nil {
			return err
		}
		user.HasUsedTrial = true
		user.UpdatedAt = now
		return s.users.Save(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("start_trial user %d: %w", userID, err)
	}

	s.metrics.RecordSubscriptionTransition(string(subscriptiondomain.SubscriptionStatusTrialing))
	s.log.Info("trial started",
		zap.Int64("subscription_id", subscription.ID.Int64()),
		zap.Int64("user_id", userID.Int64()),
		zap.Time("trial_end_at", trialEnd),
	)

	return subscription, nil
}

// Activate implements domain.Service.
func (s *Service) Activate(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch subscription.Status {
	case subscriptiondomain.SubscriptionStatusTrialing, subscriptiondomain.SubscriptionStatusPending:
	default:
		return nil, fmt.Errorf("subscription %d: activate from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}

	plan, err := s.plans.FindByID(ctx, subscription.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("plan %d: %w", subscription.PlanID, catalogdomain.ErrPlanNotFound)
	}

	now := s.clock.Now().UTC()
	expiresAt := now.AddDate(0, 0, plan.BillingPeriod.Days())

	subscription.Status = subscriptiondomain.SubscriptionStatusActive
	subscription.ExpiresAt = &expiresAt
	subscription.UpdatedAt = now

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: activate: %w", id, err)
	}

	s.metrics.RecordSubscriptionTransition(string(subscriptiondomain.SubscriptionStatusActive))
	s.log.Info("subscription activated",
		zap.Int64("subscription_id", id.Int64()),
		zap.Time("expires_at", expiresAt),
	)

	return subscription, nil
}

// Pause implements domain.Service.
func (s *Service) Pause(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, fmt.Errorf("subscription %d: pause from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	subscription.Status = subscriptiondomain.SubscriptionStatusPaused
	subscription.PausedAt = &now
	subscription.UpdatedAt = now

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: pause: %w", id, err)
	}

	s.metrics.RecordSubscriptionTransition(string(subscriptiondomain.SubscriptionStatusPaused))
	return subscription, nil
}

// Resume implements domain.Service. Time spent paused is given back by
// moving ExpiresAt out by the pause duration.
func (s *Service) Resume(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if subscription.Status != subscriptiondomain.SubscriptionStatusPaused {
		return nil, fmt.Errorf("subscription %d: resume from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	if subscription.PausedAt != nil && subscription.ExpiresAt != nil {
		extended := subscription.ExpiresAt.Add(now.Sub(*subscription.PausedAt))
		subscription.ExpiresAt = &extended
	}

	subscription.Status = subscriptiondomain.SubscriptionStatusActive
	subscription.PausedAt = nil
	subscription.UpdatedAt = now

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: resume: %w", id, err)
	}

	s.metrics.RecordSubscriptionTransition(string(subscriptiondomain.SubscriptionStatusActive))
	return subscription, nil
}

// Cancel implements domain.Service. Cancelling twice fails.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch subscription.Status {
	case subscriptiondomain.SubscriptionStatusActive,
		subscriptiondomain.SubscriptionStatusTrialing,
		subscriptiondomain.SubscriptionStatusPaused:
	default:
		return nil, fmt.Errorf("subscription %d: cancel from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	subscription.Status = subscriptiondomain.SubscriptionStatusCancelled
	subscription.CancelledAt = &now
	subscription.PausedAt = nil
	subscription.UpdatedAt = now

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: cancel: %w", id, err)
	}

	s.metrics.RecordSubscriptionTransition(string(subscriptiondomain.SubscriptionStatusCancelled))
	s.log.Info("subscription cancelled", zap.Int64("subscription_id", id.Int64()))

	return subscription, nil
}

// Expire implements domain.Service.
func (s *Service) Expire(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if subscription.Status.Terminal() {
		return nil, fmt.Errorf("subscription %d: expire from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}

	now := s.clock.Now().UTC()
	if !subscription.DueForExpiry(now) {
		return nil, fmt.Errorf("subscription %d: %w", id, subscriptiondomain.ErrNotDue)
	}

	subscription.Status = subscriptiondomain.SubscriptionStatusExpired
	subscription.UpdatedAt = now

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: expire: %w", id, err)
	}

	s.metrics.RecordSubscriptionTransition(string(subscriptiondomain.SubscriptionStatusExpired))
	return subscription, nil
}

// QueuePlanChange implements domain.Service.
func (s *Service) QueuePlanChange(ctx context.Context, id, newPlanID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, fmt.Errorf("subscription %d: queue_plan_change from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}
	if subscription.PlanID == newPlanID {
		return nil, fmt.Errorf("subscription %d: %w", id, subscriptiondomain.ErrSamePlan)
	}
	if _, err := s.activePlan(ctx, newPlanID); err != nil {
		return nil, err
	}

	subscription.PendingPlanID = &newPlanID
	subscription.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: queue_plan_change: %w", id, err)
	}

	s.log.Info("plan change queued",
		zap.Int64("subscription_id", id.Int64()),
		zap.Int64("pending_plan_id", newPlanID.Int64()),
	)

	return subscription, nil
}

// ChangePlanNow implements domain.Service.
func (s *Service) ChangePlanNow(ctx context.Context, id, newPlanID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if subscription.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, fmt.Errorf("subscription %d: change_plan from %s: %w",
			id, subscription.Status, subscriptiondomain.ErrInvalidTransition)
	}
	if subscription.PlanID == newPlanID {
		return nil, fmt.Errorf("subscription %d: %w", id, subscriptiondomain.ErrSamePlan)
	}
	if _, err := s.activePlan(ctx, newPlanID); err != nil {
		return nil, err
	}

	subscription.PlanID = newPlanID
	subscription.PendingPlanID = nil
	subscription.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Save(ctx, subscription); err != nil {
		return nil, fmt.Errorf("subscription %d: change_plan: %w", id, err)
	}

	s.log.Info("plan changed immediately",
		zap.Int64("subscription_id", id.Int64()),
		zap.Int64("plan_id", newPlanID.Int64()),
	)

	return subscription, nil
}

// CalculateProration implements domain.Service. Pure pricing: daily rate of
// the current plan times the whole days left in the paid period is credited
// against the new plan's price, floored at zero. Nothing is persisted.
func (s *Service) CalculateProration(ctx context.Context, id, newPlanID snowflake.ID) (*subscriptiondomain.ProrationResult, error) {
	subscription, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription.ExpiresAt == nil {
		return nil, fmt.Errorf("subscription %d: %w", id, subscriptiondomain.ErrNoActivePeriod)
	}

	current, err := s.plans.FindByID(ctx, subscription.PlanID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("plan %d: %w", subscription.PlanID, catalogdomain.ErrPlanNotFound)
	}
	next, err := s.plans.FindByID(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("plan %d: %w", newPlanID, catalogdomain.ErrPlanNotFound)
	}

	now := s.clock.Now().UTC()
	daysRemaining := 0
	if remaining := subscription.ExpiresAt.Sub(now); remaining > 0 {
		daysRemaining = int(remaining.Hours() / 24)
	}

	currentPrice, err := money.New(current.Price, current.Currency)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", current.ID, err)
	}
	nextPrice, err := money.New(next.Price, next.Currency)
	if err != nil {
		return nil, fmt.Errorf("plan %d: %w", next.ID, err)
	}

	dailyRate := currentPrice.Amount.Div(decimal.NewFromInt(int64(current.BillingPeriod.Days())))
	credit := money.Money{
		Amount:   dailyRate.Mul(decimal.NewFromInt(int64(daysRemaining))),
		Currency: currentPrice.Currency,
	}.Round2()

	amountDue, err := nextPrice.Sub(credit)
	if err != nil {
		return nil, fmt.Errorf("plans %d/%d: %w", current.ID, next.ID, err)
	}
	if amountDue.IsNegative() {
		amountDue = money.Zero(nextPrice.Currency)
	}

	return &subscriptiondomain.ProrationResult{
		Credit:        credit.Amount,
		AmountDue:     amountDue.Round2().Amount,
		Currency:      nextPrice.Currency,
		DaysRemaining: daysRemaining,
	}, nil
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, fmt.Errorf("subscription %d: %w", id, subscriptiondomain.ErrSubscriptionNotFound)
	}
	return subscription, nil
}

// FindByUser implements domain.Service.
func (s *Service) FindByUser(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return s.repo.FindByUser(ctx, userID)
}

// FindActiveByUser implements domain.Service. Returns nil when the user has
// no active subscription.
func (s *Service) FindActiveByUser(ctx context.Context, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return s.repo.FindActiveByUser(ctx, userID)
}

// FindExpiring implements domain.Service.
func (s *Service) FindExpiring(ctx context.Context, days int) ([]subscriptiondomain.Subscription, error) {
	now := s.clock.Now().UTC()
	return s.repo.FindExpiring(ctx, now, now.AddDate(0, 0, days))
}

// ExpireDue implements domain.Service. Failures on individual rows are
// logged and skipped so one bad subscription cannot stall the sweep.
func (s *Service) ExpireDue(ctx context.Context) ([]subscriptiondomain.Subscription, error) {
	due, err := s.repo.FindDue(ctx, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	var expired []subscriptiondomain.Subscription
	for _, subscription := range due {
		swept, err := s.Expire(ctx, subscription.ID)
		if err != nil {
			s.log.Warn("expiry sweep skipped subscription",
				zap.Int64("subscription_id", subscription.ID.Int64()),
				zap.Error(err),
			)
			continue
		}
		expired = append(expired, *swept)
	}

	if len(expired) > 0 {
		s.log.Info("expiry sweep finished", zap.Int("expired", len(expired)))
	}

	return expired, nil
}

var _ subscriptiondomain.Service = (*Service)(nil)
