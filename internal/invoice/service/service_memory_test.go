package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/luminapay/lumina/internal/clock"
	invoicedomain "github.com/luminapay/lumina/internal/invoice/domain"
	invoicerepo "github.com/luminapay/lumina/internal/invoice/repository"
	"github.com/luminapay/lumina/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// The service behaves identically over the in-memory repository, so callers
// embedding the billing core can test without a database.
func newMemoryService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fakeClock,
		Transactor: repository.NewMemoryTransactor(),
		Repo:       invoicerepo.ProvideMemory(),
		BillingCfg: newTestBillingHolder(t),
	}).(*Service)

	return svc, fakeClock
}

func TestMemoryBackedLifecycle(t *testing.T) {
	svc, _ := newMemoryService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		UserID:    1,
		LineItems: []invoicedomain.LineItemInput{lineInput("19.99", 2)},
		TaxAmount: decimal.Zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "39.98", created.TotalAmount.StringFixed(2))
	assert.NotEmpty(t, created.InvoiceNumber)

	paid, err := svc.MarkPaid(ctx, created.ID, "pay_001", "card")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, paid.Status)

	_, err = svc.MarkPaid(ctx, created.ID, "pay_001", "card")
	assert.ErrorIs(t, err, invoicedomain.ErrAlreadyPaid)

	refunded, err := svc.MarkRefunded(ctx, created.ID, "ref_001")
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundRef)
	assert.Equal(t, "ref_001", *refunded.RefundRef)
}

// collideRepo fails the first N inserts with a duplicate-key error.
type collideRepo struct {
	invoicedomain.Repository
	failures int
}

func (r *collideRepo) Insert(ctx context.Context, invoice *invoicedomain.Invoice) error {
	if r.failures > 0 {
		r.failures--
		return gorm.ErrDuplicatedKey
	}
	return r.Repository.Insert(ctx, invoice)
}

type countingTransactor struct {
	repository.Transactor
	calls int
}

func (t *countingTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return t.Transactor.RunInTx(ctx, fn)
}

// A unique violation aborts the enclosing transaction on postgres, so every
// insert attempt must open its own nested transaction. Without that, the
// retry after a collision would reuse an aborted handle and fail outright.
func TestNumberCollisionRetriesEachAttemptInOwnTx(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	repo := &collideRepo{Repository: invoicerepo.ProvideMemory(), failures: 2}
	tx := &countingTransactor{Transactor: repository.NewMemoryTransactor()}

	svc := NewService(ServiceParam{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)),
		Transactor: tx,
		Repo:       repo,
		BillingCfg: newTestBillingHolder(t),
	}).(*Service)

	created, err := svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		UserID:    1,
		LineItems: []invoicedomain.LineItemInput{lineInput("9.99", 1)},
		TaxAmount: decimal.Zero,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.InvoiceNumber)
	assert.Equal(t, 3, tx.calls)
	assert.Equal(t, 0, repo.failures)
}

func TestNumberCollisionExhaustsBudget(t *testing.T) {
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	repo := &collideRepo{Repository: invoicerepo.ProvideMemory(), failures: 100}

	svc := NewService(ServiceParam{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)),
		Transactor: repository.NewMemoryTransactor(),
		Repo:       repo,
		BillingCfg: newTestBillingHolder(t),
	}).(*Service)

	_, err = svc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		UserID:    1,
		LineItems: []invoicedomain.LineItemInput{lineInput("9.99", 1)},
		TaxAmount: decimal.Zero,
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNumberGeneration)
}

func TestMemoryBackedOverdueSweep(t *testing.T) {
	svc, fakeClock := newMemoryService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, invoicedomain.CreateInvoiceRequest{
		UserID:    1,
		LineItems: []invoicedomain.LineItemInput{lineInput("9.99", 1)},
		TaxAmount: decimal.Zero,
	})
	require.NoError(t, err)

	found, err := svc.FindOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)

	fakeClock.Advance(31 * 24 * time.Hour)

	found, err = svc.FindOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	cancelled, err := svc.MarkCancelled(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusCancelled, cancelled.Status)
}
