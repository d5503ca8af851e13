package repository

import (
	"context"
	"errors"
)

// ErrConcurrentModification is returned when a versioned save observes a
// stale version. Callers should reload the entity and retry the operation.
var ErrConcurrentModification = errors.New("concurrent_modification")

// Transactor runs a function inside a storage transaction. The transaction
// handle travels in the context so repositories participate transparently.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
