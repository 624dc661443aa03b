package chatclient

import "time"

// Message mirrors the server's message record. Content holds plaintext when
// the client cipher decrypted it, otherwise the raw wire content.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
}

// Event is the tagged inbound event type. A single handler switches on the
// concrete type, which keeps dispatch exhaustive at the call site instead of
// spread over optional callbacks.
type Event interface {
	event()
}

// NewMessage arrives when someone sends to this user. Unavailable is set when
// the payload could not be decrypted; the content must not be rendered then.
type NewMessage struct {
	Message     Message
	Unavailable bool
}

// MessageSent echoes this user's own message back after the server persisted
// it.
type MessageSent struct {
	Message Message
}

type UserTyping struct {
	UserID string
	Typing bool
}

type UserOnline struct {
	UserID   string
	LastSeen time.Time
}

type UserOffline struct {
	UserID   string
	LastSeen time.Time
}

type OnlineUsers struct {
	UserIDs []string
}

// MessagesRead reports that the counterpart read this user's messages.
type MessagesRead struct {
	SenderID   string
	ReceiverID string
	MessageIDs []string
	ReadAt     time.Time
}

// Disconnected fires when the connection is lost and the retry budget is
// exhausted. A nil Err means a deliberate Disconnect call.
type Disconnected struct {
	Err error
}

func (NewMessage) event()   {}
func (MessageSent) event()  {}
func (UserTyping) event()   {}
func (UserOnline) event()   {}
func (UserOffline) event()  {}
func (OnlineUsers) event()  {}
func (MessagesRead) event() {}
func (Disconnected) event() {}

// Handler receives inbound events synchronously as they arrive. The facade
// does not buffer or deduplicate: consumers must tolerate duplicates across
// reconnects.
type Handler func(Event)
