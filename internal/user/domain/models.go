// Package domain contains the user reference entity the billing core reads.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the billing-facing view of an account. The core never creates
// users; it reads activity and mutates the one-time trial flag.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"type:text;uniqueIndex"`
	Active       bool         `gorm:"not null;default:true"`
	HasUsedTrial bool         `gorm:"not null;default:false"`
	Version      int64        `gorm:"not null;default:0"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
