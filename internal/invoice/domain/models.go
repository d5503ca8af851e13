// Package domain contains invoice persistence models and the invoice
// service contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents lifecycle states for an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusFailed    InvoiceStatus = "FAILED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusRefunded  InvoiceStatus = "REFUNDED"
)

// Terminal reports whether no further transition leaves this status.
func (s InvoiceStatus) Terminal() bool {
	switch s {
	case InvoiceStatusFailed, InvoiceStatusCancelled, InvoiceStatusRefunded:
		return true
	}
	return false
}

// LineItemType classifies what an invoice line bills for.
type LineItemType string

const (
	LineItemTypeSubscription LineItemType = "SUBSCRIPTION"
	LineItemTypeTokenBundle  LineItemType = "TOKEN_BUNDLE"
	LineItemTypeAddOn        LineItemType = "ADD_ON"
)

// Invoice is the billing document. TotalAmount always equals
// Subtotal + TaxAmount; a PAID invoice is never deleted.
type Invoice struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	UserID         snowflake.ID      `gorm:"not null;index"`
	SubscriptionID *snowflake.ID     `gorm:"index"`
	PlanID         *snowflake.ID     `gorm:""`
	InvoiceNumber  string            `gorm:"type:text;not null;uniqueIndex"`
	Status         InvoiceStatus     `gorm:"type:text;not null"`
	Subtotal       decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	TaxAmount      decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	TotalAmount    decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	Currency       string            `gorm:"type:text;not null"`
	InvoicedAt     time.Time         `gorm:"not null"`
	ExpiresAt      *time.Time        `gorm:""`
	PaidAt         *time.Time        `gorm:""`
	PaymentRef     *string           `gorm:"type:text"`
	PaymentMethod  *string           `gorm:"type:text"`
	RefundRef      *string           `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	LineItems      []InvoiceLineItem `gorm:"foreignKey:InvoiceID"`
	Version        int64             `gorm:"not null;default:0"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// IsPayable reports whether the invoice can still accept a payment at now.
func (i Invoice) IsPayable(now time.Time) bool {
	if i.Status != InvoiceStatusPending {
		return false
	}
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return false
	}
	return true
}

// InvoiceLineItem is one billed position on an invoice. Position preserves
// the order lines were submitted in.
type InvoiceLineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"not null;index"`
	ItemType    LineItemType    `gorm:"type:text;not null"`
	ItemID      snowflake.ID    `gorm:"not null"`
	Description string          `gorm:"type:text"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Position    int             `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }
