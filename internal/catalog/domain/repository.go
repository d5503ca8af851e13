package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPlanNotFound   = errors.New("plan_not_found")
	ErrBundleNotFound = errors.New("token_bundle_not_found")
	ErrAddOnNotFound  = errors.New("add_on_not_found")
)

type PlanRepository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Plan, error)
}

type TokenBundleRepository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*TokenBundle, error)
}

type AddOnRepository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*AddOn, error)
}
