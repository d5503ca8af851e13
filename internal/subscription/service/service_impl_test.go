package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
	catalogrepo "github.com/luminapay/lumina/internal/catalog/repository"
	"github.com/luminapay/lumina/internal/clock"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	subscriptionrepo "github.com/luminapay/lumina/internal/subscription/repository"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	userrepo "github.com/luminapay/lumina/internal/user/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/luminapay/lumina/pkg/repository"
)

type fixture struct {
	db    *gorm.DB
	svc   *Service
	clock *clock.FakeClock
	repo  subscriptiondomain.Repository
	users userdomain.Repository
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&catalogdomain.Plan{},
		&userdomain.User{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC))
	repo := subscriptionrepo.Provide(db)
	users := userrepo.Provide(db)

	svc := NewService(ServiceParam{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fakeClock,
		Transactor: repository.NewGormTransactor(db),
		Repo:       repo,
		Plans:      catalogrepo.ProvidePlans(db),
		Users:      users,
	}).(*Service)

	return &fixture{db: db, svc: svc, clock: fakeClock, repo: repo, users: users}
}

func (f *fixture) seedPlan(t *testing.T, id snowflake.ID, trialDays int, period catalogdomain.BillingPeriod, active bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&catalogdomain.Plan{
		ID:            id,
		Name:          fmt.Sprintf("plan-%d", id),
		Price:         decimal.RequireFromString("19.99"),
		Currency:      "EUR",
		BillingPeriod: period,
		TrialDays:     trialDays,
		Active:        active,
	}).Error)
}

func (f *fixture) seedUser(t *testing.T, id snowflake.ID, usedTrial bool) {
	t.Helper()
	require.NoError(t, f.db.Create(&userdomain.User{
		ID:           id,
		Email:        fmt.Sprintf("user%d@example.com", id),
		Active:       true,
		HasUsedTrial: usedTrial,
	}).Error)
}

func TestStartTrialOncePerUser(t *testing.T) {
	f := newFixture(t, "sub_trial")
	ctx := context.Background()
	f.seedPlan(t, 1, 14, catalogdomain.BillingPeriodMonthly, true)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusTrialing, sub.Status)
	require.NotNil(t, sub.TrialEndAt)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 14), *sub.TrialEndAt)

	// The one-time flag is set and never reset.
	user, err := f.users.FindByID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, user.HasUsedTrial)

	_, err = f.svc.StartTrial(ctx, 100, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrTrialAlreadyUsed)

	// Cancelling the trial does not restore eligibility.
	_, err = f.svc.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	_, err = f.svc.StartTrial(ctx, 100, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrTrialAlreadyUsed)
}

func TestStartTrialGuards(t *testing.T) {
	f := newFixture(t, "sub_trial_guards")
	ctx := context.Background()
	f.seedPlan(t, 1, 0, catalogdomain.BillingPeriodMonthly, true)
	f.seedPlan(t, 2, 14, catalogdomain.BillingPeriodMonthly, false)
	f.seedUser(t, 100, false)

	_, err := f.svc.StartTrial(ctx, 100, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrTrialNotOffered)

	_, err = f.svc.StartTrial(ctx, 100, 2)
	assert.ErrorIs(t, err, subscriptiondomain.ErrPlanInactive)

	_, err = f.svc.StartTrial(ctx, 999, 1)
	assert.Error(t, err)
}

func TestActivateStampsPeriodEnd(t *testing.T) {
	f := newFixture(t, "sub_activate")
	ctx := context.Background()
	f.seedPlan(t, 1, 14, catalogdomain.BillingPeriodMonthly, true)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)

	active, err := f.svc.Activate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, active.Status)
	require.NotNil(t, active.ExpiresAt)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 30), *active.ExpiresAt)

	// Re-activating an active subscription fails.
	_, err = f.svc.Activate(ctx, sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidTransition)
}

func TestPauseResumeExtendsPeriod(t *testing.T) {
	f := newFixture(t, "sub_pause")
	ctx := context.Background()
	f.seedPlan(t, 1, 14, catalogdomain.BillingPeriodMonthly, true)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)
	active, err := f.svc.Activate(ctx, sub.ID)
	require.NoError(t, err)
	originalExpiry := *active.ExpiresAt

	paused, err := f.svc.Pause(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)

	f.clock.Advance(72 * time.Hour)

	resumed, err := f.svc.Resume(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	require.NotNil(t, resumed.ExpiresAt)
	assert.Equal(t, originalExpiry.Add(72*time.Hour), *resumed.ExpiresAt)
}

func TestCancelTwiceFails(t *testing.T) {
	f := newFixture(t, "sub_cancel")
	ctx := context.Background()
	f.seedPlan(t, 1, 14, catalogdomain.BillingPeriodMonthly, true)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.PausedAt)

	_, err = f.svc.Cancel(ctx, sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidTransition)
}

func TestQueuePlanChange(t *testing.T) {
	f := newFixture(t, "sub_queue")
	ctx := context.Background()
	f.seedPlan(t, 1, 14, catalogdomain.BillingPeriodMonthly, true)
	f.seedPlan(t, 2, 0, catalogdomain.BillingPeriodYearly, true)
	f.seedPlan(t, 3, 0, catalogdomain.BillingPeriodYearly, false)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)

	// Only ACTIVE subscriptions can queue a change.
	_, err = f.svc.QueuePlanChange(ctx, sub.ID, 2)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidTransition)

	_, err = f.svc.Activate(ctx, sub.ID)
	require.NoError(t, err)

	_, err = f.svc.QueuePlanChange(ctx, sub.ID, 1)
	assert.ErrorIs(t, err, subscriptiondomain.ErrSamePlan)

	_, err = f.svc.QueuePlanChange(ctx, sub.ID, 3)
	assert.ErrorIs(t, err, subscriptiondomain.ErrPlanInactive)

	queued, err := f.svc.QueuePlanChange(ctx, sub.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, queued.PendingPlanID)
	assert.Equal(t, snowflake.ID(2), *queued.PendingPlanID)
	assert.Equal(t, snowflake.ID(1), queued.PlanID)
}

func TestChangePlanNow(t *testing.T) {
	f := newFixture(t, "sub_change_now")
	ctx := context.Background()
	f.seedPlan(t, 1, 14, catalogdomain.BillingPeriodMonthly, true)
	f.seedPlan(t, 2, 0, catalogdomain.BillingPeriodYearly, true)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, sub.ID)
	require.NoError(t, err)
	_, err = f.svc.QueuePlanChange(ctx, sub.ID, 2)
	require.NoError(t, err)

	changed, err := f.svc.ChangePlanNow(ctx, sub.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), changed.PlanID)
	assert.Nil(t, changed.PendingPlanID)
}

func TestExpireDueSweep(t *testing.T) {
	f := newFixture(t, "sub_sweep")
	ctx := context.Background()
	f.seedPlan(t, 1, 7, catalogdomain.BillingPeriodWeekly, true)
	f.seedUser(t, 100, false)
	f.seedUser(t, 101, false)

	trial, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)

	paid, err := f.svc.StartTrial(ctx, 101, 1)
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, paid.ID)
	require.NoError(t, err)

	// Not yet due.
	_, err = f.svc.Expire(ctx, trial.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotDue)

	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// Past the 7-day trial and the 7-day paid period.
	f.clock.Advance(8 * 24 * time.Hour)

	expired, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Len(t, expired, 2)
	for _, sub := range expired {
		assert.Equal(t, subscriptiondomain.SubscriptionStatusExpired, sub.Status)
	}

	// Terminal states stay put on repeat sweeps.
	expired, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestFindExpiringWindow(t *testing.T) {
	f := newFixture(t, "sub_expiring")
	ctx := context.Background()
	f.seedPlan(t, 1, 7, catalogdomain.BillingPeriodMonthly, true)
	f.seedUser(t, 100, false)

	sub, err := f.svc.StartTrial(ctx, 100, 1)
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, sub.ID)
	require.NoError(t, err)

	within, err := f.svc.FindExpiring(ctx, 31)
	require.NoError(t, err)
	assert.Len(t, within, 1)

	outside, err := f.svc.FindExpiring(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, outside)
}
