// Package store implements the persistence collaborators consumed by
// the real-time layer and the HTTP handlers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulseapp/pulse/internal/models"
	"gorm.io/gorm"
)

// MessageStore persists direct messages and conversations
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore creates a message store backed by the given database
func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

// orderPair returns the two user ids in lexicographic order so a
// conversation between the same pair always maps to one row
func orderPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// EnsureConversation finds or creates the conversation row for a pair
func (s *MessageStore) EnsureConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	a, b := orderPair(userA, userB)

	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation lookup failed: %w", err)
	}

	conv = models.Conversation{UserAID: a, UserBID: b}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("conversation create failed: %w", err)
	}
	return &conv, nil
}

// SaveMessage persists one direct message, assigning its canonical id
// and creation timestamp. An empty conversationID resolves to the
// conversation for the sender/recipient pair, creating it if needed.
func (s *MessageStore) SaveMessage(ctx context.Context, senderID, recipientID, conversationID, content, messageType string) (*models.Message, error) {
	if conversationID == "" {
		conv, err := s.EnsureConversation(ctx, senderID, recipientID)
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
	}

	if messageType == "" {
		messageType = models.MessageTypeText
	}

	message := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Body:           content,
		MessageType:    messageType,
	}

	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("message create failed: %w", err)
	}

	now := time.Now().UTC()
	s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_at", now)

	return &message, nil
}

// ConversationMessages returns messages in a conversation, newest first
func (s *MessageStore) ConversationMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("message history query failed: %w", err)
	}
	return messages, nil
}

// UserConversations lists a user's conversations, most recent first
func (s *MessageStore) UserConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("conversation list query failed: %w", err)
	}
	return conversations, nil
}

// MarkConversationRead marks all messages addressed to userID in the
// conversation as read
func (s *MessageStore) MarkConversationRead(ctx context.Context, conversationID, userID string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND read_at IS NULL", conversationID, userID).
		Update("read_at", now).Error
	if err != nil {
		return fmt.Errorf("mark read failed: %w", err)
	}
	return nil
}
