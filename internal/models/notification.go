package models

import "time"

// Notification kinds
const (
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
	NotificationTypeFollow  = "follow"
	NotificationTypeMessage = "message"
)

// Notification is a persisted in-app notification for one user
type Notification struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"not null;index:idx_notifications_user_created" json:"user_id"`

	Type    string `gorm:"not null" json:"type"`
	ActorID string `gorm:"not null" json:"actor_id"`
	PostID  string `gorm:"index" json:"post_id,omitempty"`
	Body    string `gorm:"type:text" json:"body"`

	IsRead bool `gorm:"default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"index:idx_notifications_user_created" json:"created_at"`
}
