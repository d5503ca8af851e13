package repository

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/luminapay/lumina/internal/catalog/domain"
)

// Catalog rows are read-only to billing code, so the in-memory doubles are
// just seedable maps.

type MemoryPlanRepo struct {
	mu    sync.Mutex
	plans map[snowflake.ID]catalogdomain.Plan
}

func ProvideMemoryPlans() *MemoryPlanRepo {
	return &MemoryPlanRepo{plans: make(map[snowflake.ID]catalogdomain.Plan)}
}

func (r *MemoryPlanRepo) Put(plan catalogdomain.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.ID] = plan
}

func (r *MemoryPlanRepo) FindByID(ctx context.Context, id snowflake.ID) (*catalogdomain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.plans[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

type MemoryTokenBundleRepo struct {
	mu      sync.Mutex
	bundles map[snowflake.ID]catalogdomain.TokenBundle
}

func ProvideMemoryTokenBundles() *MemoryTokenBundleRepo {
	return &MemoryTokenBundleRepo{bundles: make(map[snowflake.ID]catalogdomain.TokenBundle)}
}

func (r *MemoryTokenBundleRepo) Put(bundle catalogdomain.TokenBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[bundle.ID] = bundle
}

func (r *MemoryTokenBundleRepo) FindByID(ctx context.Context, id snowflake.ID) (*catalogdomain.TokenBundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bundles[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

type MemoryAddOnRepo struct {
	mu     sync.Mutex
	addOns map[snowflake.ID]catalogdomain.AddOn
}

func ProvideMemoryAddOns() *MemoryAddOnRepo {
	return &MemoryAddOnRepo{addOns: make(map[snowflake.ID]catalogdomain.AddOn)}
}

func (r *MemoryAddOnRepo) Put(addOn catalogdomain.AddOn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addOns[addOn.ID] = addOn
}

func (r *MemoryAddOnRepo) FindByID(ctx context.Context, id snowflake.ID) (*catalogdomain.AddOn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.addOns[id]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

var (
	_ catalogdomain.PlanRepository        = (*MemoryPlanRepo)(nil)
	_ catalogdomain.TokenBundleRepository = (*MemoryTokenBundleRepo)(nil)
	_ catalogdomain.AddOnRepository       = (*MemoryAddOnRepo)(nil)
)
