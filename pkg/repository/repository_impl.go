package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx injects a transaction handle into the context.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// DBFromContext returns the active transaction if one is in flight,
// otherwise the fallback handle.
func DBFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback
}

// GormTransactor implements Transactor on a gorm connection.
type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the in-flight transaction via a savepoint.
	return DBFromContext(ctx, t.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

// Store is a generic gorm-backed store for a single entity type.
type Store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) *Store[T] {
	return &Store[T]{db: db}
}

func (r *Store[T]) DB(ctx context.Context) *gorm.DB {
	return DBFromContext(ctx, r.db).WithContext(ctx)
}

func (r *Store[T]) Find(ctx context.Context, query *T, opts ...QueryOption) ([]T, error) {
	var result []T
	err := r.buildQuery(ctx, query, opts...).Find(&result).Error
	return result, err
}

func (r *Store[T]) FindOne(ctx context.Context, query *T, opts ...QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, query, opts...).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *Store[T]) Create(ctx context.Context, resource *T) error {
	return r.DB(ctx).Create(resource).Error
}

// SaveVersioned writes the full entity guarded by an optimistic version
// check. The entity must already carry the incremented version; fromVersion
// is the version that was loaded. A stale row yields
// ErrConcurrentModification.
func (r *Store[T]) SaveVersioned(ctx context.Context, resource *T, fromVersion int64) error {
	res := r.DB(ctx).Model(resource).
		Where("version = ?", fromVersion).
		Select("*").
		Omit("created_at").
		Updates(resource)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (r *Store[T]) Count(ctx context.Context, query *T) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(new(T)).Where(query).Count(&count).Error
	return count, err
}

func (r *Store[T]) buildQuery(ctx context.Context, filter *T, opts ...QueryOption) *gorm.DB {
	db := r.DB(ctx).Where(filter)
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

// QueryOption customises a query built by Store.
type QueryOption func(*gorm.DB) *gorm.DB

func WithOrder(order string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

func WithLimitOffset(limit, offset int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			db = db.Limit(limit)
		}
		if offset > 0 {
			db = db.Offset(offset)
		}
		return db
	}
}

func WithPreload(association string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Preload(association) }
}

func WithCondition(query string, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}
