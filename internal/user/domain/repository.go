package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrUserNotFound = errors.New("user_not_found")

type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	Save(ctx context.Context, user *User) error
}
