// Package domain contains the token ledger: one balance row per user plus
// an append-only transaction log, and the bundle purchases that feed it.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TokenTransactionType classifies ledger entries.
type TokenTransactionType string

const (
	TransactionTypePurchase   TokenTransactionType = "PURCHASE"
	TransactionTypeUsage      TokenTransactionType = "USAGE"
	TransactionTypeRefund     TokenTransactionType = "REFUND"
	TransactionTypeBonus      TokenTransactionType = "BONUS"
	TransactionTypeAdjustment TokenTransactionType = "ADJUSTMENT"
)

// Valid reports whether t is a known transaction type.
func (t TokenTransactionType) Valid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeUsage, TransactionTypeRefund,
		TransactionTypeBonus, TransactionTypeAdjustment:
		return true
	}
	return false
}

// TokenBalance is the materialized balance for one user. It only moves
// through transaction application and never goes negative.
type TokenBalance struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex"`
	Balance   int64        `gorm:"not null;default:0"`
	Version   int64        `gorm:"not null;default:0"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TokenBalance) TableName() string { return "token_balances" }

// TokenTransaction is one immutable ledger entry. Amount is signed: credits
// positive, debits negative.
type TokenTransaction struct {
	ID          snowflake.ID         `gorm:"primaryKey"`
	UserID      snowflake.ID         `gorm:"not null;index"`
	Amount      int64                `gorm:"not null"`
	Type        TokenTransactionType `gorm:"type:text;not null"`
	ReferenceID *snowflake.ID        `gorm:"index"`
	Description string               `gorm:"type:text"`
	CreatedAt   time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TokenTransaction) TableName() string { return "token_transactions" }

// PurchaseStatus represents lifecycle states for a token bundle purchase.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "PENDING"
	PurchaseStatusCompleted PurchaseStatus = "COMPLETED"
	PurchaseStatusRefunded  PurchaseStatus = "REFUNDED"
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

// TokenBundlePurchase links a bundle sale to its invoice and tracks whether
// tokens have been credited. TokensCredited flips false to true exactly
// once; a refund is the only path that effectively reverses it.
type TokenBundlePurchase struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	UserID         snowflake.ID    `gorm:"not null;index"`
	BundleID       snowflake.ID    `gorm:"not null"`
	InvoiceID      *snowflake.ID   `gorm:"index"`
	Status         PurchaseStatus  `gorm:"type:text;not null"`
	TokensCredited bool            `gorm:"not null;default:false"`
	TokenAmount    int64           `gorm:"not null"`
	Price          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency       string          `gorm:"type:text;not null"`
	CompletedAt    *time.Time      `gorm:""`
	Version        int64           `gorm:"not null;default:0"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TokenBundlePurchase) TableName() string { return "token_bundle_purchases" }
