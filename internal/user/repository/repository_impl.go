package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/luminapay/lumina/internal/user/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	users *repository.Store[userdomain.User]
}

func Provide(db *gorm.DB) userdomain.Repository {
	return &repo{users: repository.ProvideStore[userdomain.User](db)}
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	return r.users.FindOne(ctx, &userdomain.User{ID: id})
}

func (r *repo) Save(ctx context.Context, user *userdomain.User) error {
	fromVersion := user.Version
	user.Version++
	return r.users.SaveVersioned(ctx, user, fromVersion)
}
