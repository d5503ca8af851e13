package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/luminapay/lumina/internal/checkout/domain"
	"github.com/luminapay/lumina/pkg/repository"
	"gorm.io/gorm"
)

type addOnSubRepo struct {
	subs *repository.Store[checkoutdomain.AddOnSubscription]
}

func ProvideAddOnSubscriptions(db *gorm.DB) checkoutdomain.AddOnSubscriptionRepository {
	return &addOnSubRepo{subs: repository.ProvideStore[checkoutdomain.AddOnSubscription](db)}
}

func (r *addOnSubRepo) Insert(ctx context.Context, sub *checkoutdomain.AddOnSubscription) error {
	return r.subs.Create(ctx, sub)
}

func (r *addOnSubRepo) FindByID(ctx context.Context, id snowflake.ID) (*checkoutdomain.AddOnSubscription, error) {
	return r.subs.FindOne(ctx, &checkoutdomain.AddOnSubscription{ID: id})
}

func (r *addOnSubRepo) FindByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]checkoutdomain.AddOnSubscription, error) {
	return r.subs.Find(ctx, &checkoutdomain.AddOnSubscription{InvoiceID: &invoiceID})
}

func (r *addOnSubRepo) Save(ctx context.Context, sub *checkoutdomain.AddOnSubscription) error {
	fromVersion := sub.Version
	sub.Version++
	return r.subs.SaveVersioned(ctx, sub, fromVersion)
}
