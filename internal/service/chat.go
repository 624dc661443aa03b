package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/hub"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/metrics"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/repository"
	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/wire"
)

var ErrBadRequest = errors.New("chat: invalid request")

// ConversationCache is the invalidation seam between the two write paths and
// the read path. Implemented by cache.Conversations; nil disables caching.
type ConversationCache interface {
	Get(ctx context.Context, userA, userB string) ([]*domain.Message, error)
	Set(ctx context.Context, userA, userB string, msgs []*domain.Message) error
	Invalidate(ctx context.Context, userA, userB string) error
}

// EventPublisher feeds the hospital app's event bus. Implemented by
// events.Publisher; nil disables publishing.
type EventPublisher interface {
	MessageSent(ctx context.Context, m *domain.Message)
	MessagesRead(ctx context.Context, senderID, receiverID string, ids []string, at time.Time)
}

// Chat implements message send, read-state, and history for both transports.
// The socket session manager and the REST handlers are thin wrappers over it,
// which is what keeps socket and REST sends reconciled to one consistent view.
type Chat struct {
	store repository.MessageStore
	cache ConversationCache
	pub   EventPublisher
	hub   *hub.Hub
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewChat(store repository.MessageStore, cache ConversationCache, pub EventPublisher, h *hub.Hub, log *zap.SugaredLogger) *Chat {
	return &Chat{store: store, cache: cache, pub: pub, hub: h, log: log, now: time.Now}
}

// Send persists the message, invalidates the cached conversation view,
// publishes the bus event, and best-effort pushes new-message to the
// receiver's live connections. Persistence failure aborts the send; delivery
// failure does not (the receiver picks the message up on next fetch).
func (c *Chat) Send(ctx context.Context, senderID, receiverID, content string) (*domain.Message, error) {
	if senderID == "" || receiverID == "" || content == "" {
		return nil, fmt.Errorf("%w: senderId, receiverId and content are required", ErrBadRequest)
	}

	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  c.now().UTC(),
	}
	if err := c.store.Save(ctx, m); err != nil {
		return nil, err
	}

	if c.pub != nil {
		c.pub.MessageSent(ctx, m)
	}
	c.invalidate(ctx, senderID, receiverID)

	payload, err := wire.Encode(wire.EventNewMessage, m)
	if err == nil {
		if n := c.hub.SendToUser(receiverID, payload); n > 0 {
			metrics.MessagesDelivered.Inc()
		}
	}
	return m, nil
}

// MarkRead sets readAt on the unread messages from senderID to receiverID and
// notifies the original sender over the socket.
func (c *Chat) MarkRead(ctx context.Context, senderID, receiverID string) (*wire.MessagesRead, error) {
	if senderID == "" || receiverID == "" {
		return nil, fmt.Errorf("%w: senderId and receiverId are required", ErrBadRequest)
	}

	readAt := c.now().UTC()
	ids, err := c.store.MarkRead(ctx, senderID, receiverID, readAt)
	if err != nil {
		return nil, err
	}
	receipt := &wire.MessagesRead{
		SenderID:   senderID,
		ReceiverID: receiverID,
		MessageIDs: ids,
		ReadAt:     readAt,
	}
	if len(ids) == 0 {
		return receipt, nil
	}

	if c.pub != nil {
		c.pub.MessagesRead(ctx, senderID, receiverID, ids, readAt)
	}
	c.invalidate(ctx, senderID, receiverID)

	if payload, err := wire.Encode(wire.EventMessagesRead, receipt); err == nil {
		c.hub.SendToUser(senderID, payload)
	}
	return receipt, nil
}

// Conversation serves history through the cache.
func (c *Chat) Conversation(ctx context.Context, userA, userB string, limit int64) ([]*domain.Message, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	if c.cache != nil {
		if msgs, err := c.cache.Get(ctx, userA, userB); err == nil && msgs != nil {
			return msgs, nil
		} else if err != nil {
			c.log.Warnw("conversation cache read failed", "err", err)
		}
	}
	msgs, err := c.store.Conversation(ctx, userA, userB, limit)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, userA, userB, msgs); err != nil {
			c.log.Warnw("conversation cache write failed", "err", err)
		}
	}
	return msgs, nil
}

func (c *Chat) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return c.store.UnreadCount(ctx, userID)
}

func (c *Chat) invalidate(ctx context.Context, userA, userB string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, userA, userB); err != nil {
		c.log.Warnw("conversation cache invalidate failed", "err", err)
	}
}
