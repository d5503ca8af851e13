// Package domain contains checkout orchestration contracts and the add-on
// subscription artifact checkout creates.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AddOnStatus represents lifecycle states for an add-on subscription.
type AddOnStatus string

const (
	AddOnStatusPending   AddOnStatus = "PENDING"
	AddOnStatusActive    AddOnStatus = "ACTIVE"
	AddOnStatusCancelled AddOnStatus = "CANCELLED"
)

// AddOnSubscription is a sold add-on. Created PENDING at checkout,
// activated when the covering invoice is paid, cancelled on refund.
type AddOnSubscription struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	UserID      snowflake.ID  `gorm:"not null;index"`
	AddOnID     snowflake.ID  `gorm:"not null"`
	InvoiceID   *snowflake.ID `gorm:"index"`
	Status      AddOnStatus   `gorm:"type:text;not null"`
	ActivatedAt *time.Time    `gorm:""`
	CancelledAt *time.Time    `gorm:""`
	Version     int64         `gorm:"not null;default:0"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AddOnSubscription) TableName() string { return "add_on_subscriptions" }
