package store

import (
	"context"
	"testing"

	"github.com/pulseapp/pulse/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM messages")
		db.Exec("DELETE FROM conversations")
		db.Exec("DELETE FROM users")
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return db
}

func TestEnsureConversationCanonicalPair(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	first, err := s.EnsureConversation(ctx, "bbb", "aaa")
	require.NoError(t, err)
	assert.Equal(t, "aaa", first.UserAID)
	assert.Equal(t, "bbb", first.UserBID)

	// Opposite argument order resolves to the same row
	second, err := s.EnsureConversation(ctx, "aaa", "bbb")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSaveMessageCreatesConversation(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	msg, err := s.SaveMessage(ctx, "sender-1", "recipient-1", "", "hello there", "")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.NotEmpty(t, msg.ConversationID)
	assert.Equal(t, "sender-1", msg.SenderID)
	assert.Equal(t, "recipient-1", msg.RecipientID)
	assert.Equal(t, "hello there", msg.Body)
	assert.Equal(t, models.MessageTypeText, msg.MessageType)
	assert.False(t, msg.CreatedAt.IsZero())

	var conv models.Conversation
	require.NoError(t, db.First(&conv, "id = ?", msg.ConversationID).Error)
	assert.NotNil(t, conv.LastMessageAt)
}

func TestSaveMessageReusesConversation(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	first, err := s.SaveMessage(ctx, "u1", "u2", "", "one", models.MessageTypeText)
	require.NoError(t, err)

	// Reply in the other direction lands in the same conversation
	second, err := s.SaveMessage(ctx, "u2", "u1", "", "two", models.MessageTypeText)
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestConversationMessagesNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	var convID string
	for _, body := range []string{"first", "second", "third"} {
		msg, err := s.SaveMessage(ctx, "u1", "u2", convID, body, models.MessageTypeText)
		require.NoError(t, err)
		convID = msg.ConversationID
	}

	messages, err := s.ConversationMessages(ctx, convID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "third", messages[0].Body)
	assert.Equal(t, "first", messages[2].Body)

	page, err := s.ConversationMessages(ctx, convID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestUserConversations(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	_, err := s.SaveMessage(ctx, "alice", "bob", "", "hi bob", models.MessageTypeText)
	require.NoError(t, err)
	_, err = s.SaveMessage(ctx, "carol", "alice", "", "hi alice", models.MessageTypeText)
	require.NoError(t, err)
	_, err = s.SaveMessage(ctx, "bob", "carol", "", "hi carol", models.MessageTypeText)
	require.NoError(t, err)

	conversations, err := s.UserConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, conversations, 2)
}

func TestMarkConversationRead(t *testing.T) {
	db := setupTestDB(t)
	s := NewMessageStore(db)
	ctx := context.Background()

	msg, err := s.SaveMessage(ctx, "u1", "u2", "", "unread", models.MessageTypeText)
	require.NoError(t, err)
	require.Nil(t, msg.ReadAt)

	require.NoError(t, s.MarkConversationRead(ctx, msg.ConversationID, "u2"))

	var reloaded models.Message
	require.NoError(t, db.First(&reloaded, "id = ?", msg.ID).Error)
	assert.NotNil(t, reloaded.ReadAt)

	// Messages addressed to the other party stay untouched
	other, err := s.SaveMessage(ctx, "u2", "u1", "", "reply", models.MessageTypeText)
	require.NoError(t, err)
	require.NoError(t, s.MarkConversationRead(ctx, other.ConversationID, "u2"))

	var reply models.Message
	require.NoError(t, db.First(&reply, "id = ?", other.ID).Error)
	assert.Nil(t, reply.ReadAt)
}
