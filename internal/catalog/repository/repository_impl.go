package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type planRepo struct {
	plans *repository.Store[catalogdomain.Plan]
}

func ProvidePlans(db *gorm.DB) catalogdomain.PlanRepository {
	return &planRepo{plans: repository.ProvideStore[catalogdomain.Plan](db)}
}

func (r *planRepo) FindByID(ctx context.Context, id snowflake.ID) (*catalogdomain.Plan, error) {
	return r.plans.FindOne(ctx, &catalogdomain.Plan{ID: id})
}

type bundleRepo struct {
	bundles *repository.Store[catalogdomain.TokenBundle]
}

func ProvideTokenBundles(db *gorm.DB) catalogdomain.TokenBundleRepository {
	return &bundleRepo{bundles: repository.ProvideStore[catalogdomain.TokenBundle](db)}
}

func (r *bundleRepo) FindByID(ctx context.Context, id snowflake.ID) (*catalogdomain.TokenBundle, error) {
	return r.bundles.FindOne(ctx, &catalogdomain.TokenBundle{ID: id})
}

type addOnRepo struct {
	addOns *repository.Store[catalogdomain.AddOn]
}

func ProvideAddOns(db *gorm.DB) catalogdomain.AddOnRepository {
	return &addOnRepo{addOns: repository.ProvideStore[catalogdomain.AddOn](db)}
}

func (r *addOnRepo) FindByID(ctx context.Context, id snowflake.ID) (*catalogdomain.AddOn, error) {
	return r.addOns.FindOne(ctx, &catalogdomain.AddOn{ID: id})
}
