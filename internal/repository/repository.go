package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
)

var ErrNotFound = errors.New("not found")

// MessageStore is the durable side of the chat core. The socket path and the
// REST fallback both write through it, so a receiver with no live connection
// still sees the message on next fetch.
type MessageStore interface {
	// Save appends a message. Idempotent on message ID.
	Save(ctx context.Context, m *domain.Message) error
	// Conversation returns the newest messages between the two users, newest
	// first, regardless of direction.
	Conversation(ctx context.Context, userA, userB string, limit int64) ([]*domain.Message, error)
	// MarkRead sets readAt on every unread message sent by senderID to
	// receiverID and returns the IDs it touched.
	MarkRead(ctx context.Context, senderID, receiverID string, readAt time.Time) ([]string, error)
	// UnreadCount reports how many unread messages the user has.
	UnreadCount(ctx context.Context, receiverID string) (int64, error)
}
