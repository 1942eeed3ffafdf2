package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom unmarshaling for timestamps
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	// Try to unmarshal as Unix milliseconds (integer)
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	// Fall back to RFC3339 string format
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON implements custom marshaling (always output as RFC3339)
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Frame types for WebSocket communication
const (
	// System frames
	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"

	// Connection authentication
	MessageTypeAuthenticate  = "authenticate"
	MessageTypeAuthenticated = "authenticated"
	MessageTypeAuthError     = "authentication_error"

	// Direct messaging
	MessageTypeSendMessage = "send_message"
	MessageTypeNewMessage  = "new_message"
	MessageTypeMessageSent = "message_sent"

	// Typing indicators
	MessageTypeTypingStart = "typing_start"
	MessageTypeTypingStop  = "typing_stop"

	// Feed broadcasts
	MessageTypeNewPost     = "new_post"
	MessageTypePostDeleted = "post_deleted"
	MessageTypePostLiked   = "post_liked"
	MessageTypePostUnliked = "post_unliked"
	MessageTypeNewComment  = "new_comment"

	// Social broadcasts
	MessageTypeNewFollow = "new_follow"
	MessageTypeUnfollow  = "unfollow"

	// Notifications (unicast)
	MessageTypeNotification      = "notification"
	MessageTypeNotificationCount = "notification_count"
)

// Message represents a WebSocket frame envelope
type Message struct {
	// Type identifies the frame type for routing
	Type string `json:"type"`

	// Payload contains the frame-specific data
	Payload interface{} `json:"payload,omitempty"`

	// ID is a unique frame identifier for acknowledgment
	ID string `json:"id,omitempty"`

	// ReplyTo references the original frame ID for responses
	ReplyTo string `json:"reply_to,omitempty"`

	// Timestamp when the frame was created (accepts Unix ms or RFC3339)
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a new frame with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewReply creates a reply frame referencing an original frame
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		ReplyTo:   original.ID,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewErrorMessage creates an error frame
func NewErrorMessage(code string, message string) *Message {
	return &Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// ParsePayload unmarshals the payload into a specific type
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}

	// Re-marshal and unmarshal to properly type the payload
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// ErrorPayload represents an error frame payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload represents a ping frame payload
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

// PongPayload represents a pong frame payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// AuthenticatePayload carries the credential token of an authenticate frame
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// AuthResultPayload is the response to an authenticate frame
type AuthResultPayload struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// SendMessagePayload is the inbound direct-message request.
// The sender identity is never read from here - it comes from the
// authenticated connection.
type SendMessagePayload struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type,omitempty"`
}

// TypingPayload carries typing indicator signals.
// Inbound, TargetID names the peer to notify; outbound, UserID is the
// identity of the peer who is typing.
type TypingPayload struct {
	TargetID       string `json:"target_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SystemPayload represents system event payloads
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NotificationCountPayload indicates unread notification count changed
type NotificationCountPayload struct {
	UnreadCount int64 `json:"unread_count"`
}
