// Package wire defines the socket event contract. Event names and payload
// shapes are compatibility-critical: the hospital app's web client speaks
// exactly this vocabulary.
package wire

import (
	"encoding/json"
	"time"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
)

// Client -> server events.
const (
	EventJoinUser       = "join-user"
	EventSendMessage    = "send-message"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
	EventMarkRead       = "mark-messages-read"
	EventGetOnlineUsers = "get-online-users"
)

// Server -> client events.
const (
	EventNewMessage      = "new-message"
	EventMessageSent     = "message-sent"
	EventUserTyping      = "user-typing"
	EventMessagesRead    = "messages-read"
	EventOnlineUsersList = "online-users-list"
	EventUserOnline      = "user-online"
	EventUserOffline     = "user-offline"
)

// Envelope frames every socket message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinUser struct {
	UserID string `json:"userId"`
}

type SendMessage struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

type Typing struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type UserTyping struct {
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

type MarkRead struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type MessagesRead struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	MessageIDs []string  `json:"messageIds"`
	ReadAt     time.Time `json:"readAt"`
}

type PresenceChange struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

type OnlineUsers struct {
	UserIDs []string `json:"userIds"`
}

// NewMessage and MessageSent carry the persisted record.
type MessagePayload = domain.Message

// Encode frames an event and its payload.
func Encode(event string, v any) ([]byte, error) {
	var data json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
