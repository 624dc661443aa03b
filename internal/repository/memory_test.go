package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
)

func msg(id, from, to string, at time.Time) *domain.Message {
	return &domain.Message{ID: id, SenderID: from, ReceiverID: to, Content: "c-" + id, CreatedAt: at}
}

func TestSaveIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := msg("a", "1", "2", time.Now())
	require.NoError(t, s.Save(ctx, m))
	require.NoError(t, s.Save(ctx, m))

	msgs, err := s.Conversation(ctx, "1", "2", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestConversationBothDirectionsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	require.NoError(t, s.Save(ctx, msg("a", "1", "2", base)))
	require.NoError(t, s.Save(ctx, msg("b", "2", "1", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, msg("c", "1", "3", base))) // other pair

	msgs, err := s.Conversation(ctx, "1", "2", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].ID)
	assert.Equal(t, "a", msgs[1].ID)
}

func TestConversationLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, msg(string(rune('a'+i)), "1", "2", base.Add(time.Duration(i)*time.Second))))
	}
	msgs, err := s.Conversation(ctx, "2", "1", 3)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.Equal(t, "e", msgs[0].ID)
}

func TestMarkReadOnlyMatchingDirection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	require.NoError(t, s.Save(ctx, msg("a", "1", "2", base)))
	require.NoError(t, s.Save(ctx, msg("b", "1", "2", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, msg("c", "2", "1", base)))

	readAt := time.Now().UTC()
	ids, err := s.MarkRead(ctx, "1", "2", readAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	msgs, err := s.Conversation(ctx, "1", "2", 10)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.SenderID == "1" {
			require.NotNil(t, m.ReadAt)
			assert.Equal(t, readAt, *m.ReadAt)
		} else {
			assert.Nil(t, m.ReadAt, "reverse direction untouched")
		}
	}

	// second pass finds nothing unread
	ids, err = s.MarkRead(ctx, "1", "2", time.Now())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUnreadCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	require.NoError(t, s.Save(ctx, msg("a", "1", "2", base)))
	require.NoError(t, s.Save(ctx, msg("b", "3", "2", base)))

	n, err := s.UnreadCount(ctx, "2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = s.MarkRead(ctx, "1", "2", time.Now())
	require.NoError(t, err)
	n, err = s.UnreadCount(ctx, "2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
