package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
)

const (
	TypeMessageSent = "message.sent"
	TypeMessageRead = "message.read"
)

// Envelope is the payload shape on the chat events topic. The notification
// service consumes these; delivery to it is best-effort and never blocks the
// chat path.
type Envelope struct {
	Type       string    `json:"type"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	MessageIDs []string  `json:"message_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher struct {
	writer *kafkago.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) publish(ctx context.Context, key string, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		p.log.Warnw("event marshal failed", "type", env.Type, "err", err)
		return
	}
	msg := kafkago.Message{Key: []byte(key), Value: b, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warnw("event publish failed", "type", env.Type, "err", err)
	}
}

// MessageSent publishes a message.sent event keyed by the conversation pair
// so per-conversation ordering survives partitioning.
func (p *Publisher) MessageSent(ctx context.Context, m *domain.Message) {
	p.publish(ctx, domain.ConversationKey(m.SenderID, m.ReceiverID), Envelope{
		Type:       TypeMessageSent,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		MessageIDs: []string{m.ID},
		OccurredAt: m.CreatedAt,
	})
}

// MessagesRead publishes a message.read event for the given message IDs.
func (p *Publisher) MessagesRead(ctx context.Context, senderID, receiverID string, ids []string, at time.Time) {
	if len(ids) == 0 {
		return
	}
	p.publish(ctx, domain.ConversationKey(senderID, receiverID), Envelope{
		Type:       TypeMessageRead,
		SenderID:   senderID,
		ReceiverID: receiverID,
		MessageIDs: ids,
		OccurredAt: at,
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
