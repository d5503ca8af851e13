package repository

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	"github.com/luminapay/lumina/pkg/repository"
)

// MemoryRepo is the seedable in-memory double. Save enforces the same
// optimistic-version check as the gorm adapter.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[snowflake.ID]userdomain.User
}

func ProvideMemory() *MemoryRepo {
	return &MemoryRepo{users: make(map[snowflake.ID]userdomain.User)}
}

func (r *MemoryRepo) Put(user userdomain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *MemoryRepo) FindByID(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (r *MemoryRepo) Save(ctx context.Context, user *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok || stored.Version != user.Version {
		return repository.ErrConcurrentModification
	}
	user.Version++
	r.users[user.ID] = *user
	return nil
}

var _ userdomain.Repository = (*MemoryRepo)(nil)
