// Package domain contains the purchasable catalog: plans, token bundles and
// add-ons. The billing core treats these as read-only references.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BillingPeriod determines how long a paid subscription period lasts.
type BillingPeriod string

const (
	BillingPeriodWeekly    BillingPeriod = "WEEKLY"
	BillingPeriodMonthly   BillingPeriod = "MONTHLY"
	BillingPeriodQuarterly BillingPeriod = "QUARTERLY"
	BillingPeriodYearly    BillingPeriod = "YEARLY"
	BillingPeriodOneTime   BillingPeriod = "ONE_TIME"
)

// Days returns the period length in days. ONE_TIME periods effectively never
// expire.
func (p BillingPeriod) Days() int {
	switch p {
	case BillingPeriodWeekly:
		return 7
	case BillingPeriodMonthly:
		return 30
	case BillingPeriodQuarterly:
		return 90
	case BillingPeriodYearly:
		return 365
	case BillingPeriodOneTime:
		return 36500
	default:
		return 30
	}
}

// Valid reports whether p is a known billing period.
func (p BillingPeriod) Valid() bool {
	switch p {
	case BillingPeriodWeekly, BillingPeriodMonthly, BillingPeriodQuarterly,
		BillingPeriodYearly, BillingPeriodOneTime:
		return true
	}
	return false
}

// Plan is a recurring subscription offer.
type Plan struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	Name          string          `gorm:"type:text;not null"`
	Description   string          `gorm:"type:text"`
	Price         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency      string          `gorm:"type:text;not null"`
	BillingPeriod BillingPeriod   `gorm:"type:text;not null"`
	TrialDays     int             `gorm:"not null;default:0"`
	Active        bool            `gorm:"not null;default:true"`
	Version       int64           `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// TokenBundle is a one-off purchase that credits tokens.
type TokenBundle struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Name        string          `gorm:"type:text;not null"`
	TokenAmount int64           `gorm:"not null"`
	Price       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency    string          `gorm:"type:text;not null"`
	Active      bool            `gorm:"not null;default:true"`
	Version     int64           `gorm:"not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TokenBundle) TableName() string { return "token_bundles" }

// AddOn is a one-off extra sold alongside a plan at checkout.
type AddOn struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	Name      string          `gorm:"type:text;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency  string          `gorm:"type:text;not null"`
	Active    bool            `gorm:"not null;default:true"`
	Version   int64           `gorm:"not null;default:0"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AddOn) TableName() string { return "add_ons" }
