package websocket

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulseapp/pulse/internal/auth"
	"github.com/pulseapp/pulse/internal/logger"
	"github.com/pulseapp/pulse/internal/models"
	"go.uber.org/zap"
)

// MessageStore persists direct messages. The router treats the store's
// assignment of id and creation timestamp as atomic and authoritative.
type MessageStore interface {
	SaveMessage(ctx context.Context, senderID, recipientID, conversationID, content, messageType string) (*models.Message, error)
}

// Router dispatches inbound frames. Every frame type except
// authenticate (and ping) requires the connection to be authenticated;
// frames arriving before that are answered with an error and discarded
// without side effects.
type Router struct {
	hub      *Hub
	verifier auth.TokenVerifier
	store    MessageStore
}

// NewRouter creates a router and wires it into the hub
func NewRouter(hub *Hub, verifier auth.TokenVerifier, store MessageStore) *Router {
	r := &Router{
		hub:      hub,
		verifier: verifier,
		store:    store,
	}
	hub.SetRouter(r)
	return r
}

// HandleFrame routes one inbound frame. Unknown types land in the
// default arm and produce a protocol error response, never a silent
// no-op.
func (r *Router) HandleFrame(client *Client, message *Message) {
	switch message.Type {
	case MessageTypePing:
		r.handlePing(client, message)

	case MessageTypeAuthenticate:
		r.handleAuthenticate(client, message)

	case MessageTypeSendMessage:
		if !r.requireAuth(client) {
			return
		}
		r.handleSendMessage(client, message)

	case MessageTypeTypingStart, MessageTypeTypingStop:
		if !r.requireAuth(client) {
			return
		}
		r.handleTyping(client, message)

	default:
		logger.Log.Warn("Unknown frame type",
			zap.String("user", client.userID),
			zap.String("type", message.Type))
		client.SendError("unknown_type", "Unknown frame type: "+message.Type)
	}
}

// requireAuth rejects privileged frames from unauthenticated
// connections. The frame is discarded with no side effect.
func (r *Router) requireAuth(client *Client) bool {
	if client.IsAuthenticated() {
		return true
	}
	client.SendError("not_authenticated", "Authenticate before sending this frame")
	return false
}

// handlePing responds to ping frames with pong
func (r *Router) handlePing(client *Client, message *Message) {
	var ping PingPayload
	if err := message.ParsePayload(&ping); err != nil {
		ping.ClientTime = 0
	}

	serverTime := time.Now().UnixMilli()
	pong := NewReply(message, MessageTypePong, PongPayload{
		ClientTime: ping.ClientTime,
		ServerTime: serverTime,
		Latency:    serverTime - ping.ClientTime,
	})

	_ = client.Send(pong)
}

// handleAuthenticate runs the UNAUTHENTICATED -> AUTHENTICATED
// transition. Verification failure keeps the connection open and
// unauthenticated; the client may retry. Success binds the identity in
// the registry, displacing any prior connection for the same user.
// Re-authenticating an already authenticated connection rebinds
// idempotently - this is how a new tab takes over routing from an old
// one.
func (r *Router) handleAuthenticate(client *Client, message *Message) {
	var payload AuthenticatePayload
	if err := message.ParsePayload(&payload); err != nil || payload.Token == "" {
		_ = client.Send(NewReply(message, MessageTypeAuthError, AuthResultPayload{
			Success: false,
			Reason:  "missing credential token",
		}))
		return
	}

	user, err := r.verifier.ValidateToken(payload.Token)
	if err != nil {
		logger.Log.Info("WebSocket authentication failed",
			zap.String("remote", client.RemoteAddr),
			zap.Error(err))
		_ = client.Send(NewReply(message, MessageTypeAuthError, AuthResultPayload{
			Success: false,
			Reason:  "invalid or expired token",
		}))
		return
	}

	client.setIdentity(user)
	r.hub.BindUser(user.ID, client)

	_ = client.Send(NewReply(message, MessageTypeAuthenticated, AuthResultPayload{
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
	}))

	logger.Log.Info("WebSocket connection authenticated",
		logger.WithUserID(user.ID),
		zap.String("remote", client.RemoteAddr))
}

// handleSendMessage persists a direct message and forwards it to the
// recipient's live connection if one is bound. The sender always gets a
// message_sent acknowledgment after persistence succeeds, whether or
// not the recipient was reachable. Persistence failure produces an
// error frame and no delivery attempt.
func (r *Router) handleSendMessage(client *Client, message *Message) {
	var payload SendMessagePayload
	if err := message.ParsePayload(&payload); err != nil {
		client.SendError("invalid_payload", "Malformed send_message payload")
		return
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		client.SendError("empty_message", "Message content must not be empty")
		return
	}

	if _, err := uuid.Parse(payload.RecipientID); err != nil {
		client.SendError("invalid_recipient", "recipient_id is not a valid user id")
		return
	}

	messageType := payload.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	// Sender identity comes from the connection, never the frame body
	senderID, _, _ := client.Identity()

	saved, err := r.store.SaveMessage(client.ctx, senderID, payload.RecipientID,
		payload.ConversationID, content, messageType)
	if err != nil {
		logger.Log.Error("Failed to persist direct message",
			logger.WithUserID(senderID),
			zap.Error(err))
		client.SendError("store_error", "Failed to save message")
		return
	}

	// Live delivery is best-effort; the persisted record is the durable
	// source of truth an offline recipient fetches on reconnect.
	r.hub.SendToUser(payload.RecipientID, NewMessage(MessageTypeNewMessage, saved))

	_ = client.Send(NewReply(message, MessageTypeMessageSent, saved))
}

// handleTyping forwards an ephemeral typing signal to the target's live
// connection with the sender's identity substituted in. Nothing is
// retained server-side; a missing target is a silent no-op.
func (r *Router) handleTyping(client *Client, message *Message) {
	var payload TypingPayload
	if err := message.ParsePayload(&payload); err != nil || payload.TargetID == "" {
		client.SendError("invalid_payload", "Malformed typing payload")
		return
	}

	senderID, _, _ := client.Identity()
	r.hub.SendToUser(payload.TargetID, NewMessage(message.Type, TypingPayload{
		UserID:         senderID,
		ConversationID: payload.ConversationID,
	}))
}
