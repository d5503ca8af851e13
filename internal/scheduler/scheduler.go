package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luminapay/lumina/internal/clock"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	"github.com/luminapay/lumina/internal/observability/metrics"
	subscriptiondomain "github.com/luminapay/lumina/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log             *zap.Logger
	Clock           clock.Clock
	SubscriptionSvc subscriptiondomain.Service
	InvoiceSvc      invoicedomain.Service
	Metrics         *metrics.BillingMetrics `optional:"true"`
	Config          Config                  `optional:"true"`
}

// Scheduler drives the periodic expiry sweeps. The domain services expose
// the transitions; the scheduler only decides when to run them.
type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	subscriptionSvc subscriptiondomain.Service
	invoiceSvc      invoicedomain.Service
	metrics         *metrics.BillingMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.SubscriptionSvc == nil || p.InvoiceSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		subscriptionSvc: p.SubscriptionSvc,
		invoiceSvc:      p.InvoiceSvc,
		metrics:         p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	s.metrics.RecordSweepRun(name)
	err := fn(ctx)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("sweep timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordSweepError(name)
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every sweep a single time. Job failures are joined so
// one broken sweep never starves the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "expire_subscriptions", s.ExpireSubscriptionsJob))
	err = errors.Join(err, s.runJob(parent, "cancel_overdue_invoices", s.CancelOverdueInvoicesJob))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpireSubscriptionsJob transitions every subscription past its period end
// (or trial end) to EXPIRED.
func (s *Scheduler) ExpireSubscriptionsJob(ctx context.Context) error {
	expired, err := s.subscriptionSvc.ExpireDue(ctx)
	if err != nil {
		return err
	}
	if len(expired) > 0 {
		ids := make([]string, 0, len(expired))
		for _, sub := range expired {
			ids = append(ids, sub.ID.String())
		}
		s.log.Info("expired due subscriptions",
			zap.Int("count", len(expired)),
			zap.Strings("subscription_ids", ids),
		)
		s.metrics.RecordSweepProcessed("expire_subscriptions", len(expired))
	}
	return nil
}

// CancelOverdueInvoicesJob cancels PENDING invoices past their expiry so they
// can no longer be paid.
func (s *Scheduler) CancelOverdueInvoicesJob(ctx context.Context) error {
	overdue, err := s.invoiceSvc.FindOverdue(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	cancelled := 0
	for _, invoice := range overdue {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		if _, err := s.invoiceSvc.MarkCancelled(ctx, invoice.ID); err != nil {
			jobErr = errors.Join(jobErr, err)
			s.log.Warn("failed to cancel overdue invoice",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Error(err),
			)
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		s.log.Info("cancelled overdue invoices", zap.Int("count", cancelled))
		s.metrics.RecordSweepProcessed("cancel_overdue_invoices", cancelled)
	}
	return jobErr
}
