package models

import "time"

// Message types for direct messages
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Conversation groups direct messages between two users
type Conversation struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	// Participant ids, ordered lexicographically so a pair maps to one row
	UserAID string `gorm:"not null;index:idx_conversations_pair,unique" json:"user_a_id"`
	UserBID string `gorm:"not null;index:idx_conversations_pair,unique" json:"user_b_id"`

	LastMessageAt *time.Time `json:"last_message_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted direct message.
// The id and CreatedAt assigned here are the canonical identity the
// real-time layer echoes to both sender and recipient.
type Message struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ConversationID string `gorm:"not null;index:idx_messages_conversation_created" json:"conversation_id"`
	SenderID       string `gorm:"not null;index" json:"sender_id"`
	RecipientID    string `gorm:"not null;index" json:"recipient_id"`

	Body        string `gorm:"type:text;not null" json:"body"`
	MessageType string `gorm:"default:text" json:"message_type"`

	ReadAt *time.Time `json:"read_at"`

	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
