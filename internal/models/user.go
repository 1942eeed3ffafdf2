package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a Pulse account
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Bio         string `gorm:"type:text" json:"bio"`

	// Native auth fields
	PasswordHash *string `gorm:"type:text" json:"-"`
	IsAdmin      bool    `gorm:"default:false" json:"is_admin"`

	// Profile data
	AvatarURL string `json:"avatar_url"`

	// Social stats (cached counters, maintained by the social handlers)
	FollowerCount  int `gorm:"default:0" json:"follower_count"`
	FollowingCount int `gorm:"default:0" json:"following_count"`
	PostCount      int `gorm:"default:0" json:"post_count"`

	// Activity tracking
	LastActiveAt *time.Time `json:"last_active_at"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
