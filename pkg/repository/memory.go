package repository

import "context"

// MemoryTransactor satisfies Transactor for in-memory repositories, which
// have no transaction handle to carry. The callback runs directly; each
// repository call remains individually atomic under its own mutex.
type MemoryTransactor struct{}

func NewMemoryTransactor() *MemoryTransactor { return &MemoryTransactor{} }

func (t *MemoryTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ Transactor = (*MemoryTransactor)(nil)
