package models

import (
	"time"

	"gorm.io/gorm"
)

// Post represents a feed post
type Post struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Body     string `gorm:"type:text;not null" json:"body"`
	ImageURL string `json:"image_url,omitempty"`

	// Engagement counters (cached)
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Like records one user liking one post
type Like struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"not null;index:idx_likes_post_user,unique" json:"post_id"`
	UserID string `gorm:"not null;index:idx_likes_post_user,unique" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

// Follow records a directed follower -> followee edge
type Follow struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	FollowerID string `gorm:"not null;index:idx_follows_edge,unique" json:"follower_id"`
	FolloweeID string `gorm:"not null;index:idx_follows_edge,unique" json:"followee_id"`

	CreatedAt time.Time `json:"created_at"`
}

// Comment represents a comment on a post
type Comment struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	PostID string `gorm:"not null;index" json:"post_id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Body string `gorm:"type:text;not null" json:"body"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
