package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
)

// MemoryStore keeps messages in memory, capped per conversation. Backs tests
// and local development runs without a mongo instance.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*domain.Message
	cap  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*domain.Message), cap: 1000}
}

func (s *MemoryStore) Save(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; ok {
		return nil
	}
	cp := *m
	s.byID[m.ID] = &cp
	s.trimLocked(m.SenderID, m.ReceiverID)
	return nil
}

func (s *MemoryStore) trimLocked(a, b string) {
	msgs := s.pairLocked(a, b)
	if len(msgs) <= s.cap {
		return
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	for _, m := range msgs[:len(msgs)-s.cap] {
		delete(s.byID, m.ID)
	}
}

func (s *MemoryStore) pairLocked(a, b string) []*domain.Message {
	out := []*domain.Message{}
	for _, m := range s.byID {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemoryStore) Conversation(_ context.Context, userA, userB string, limit int64) ([]*domain.Message, error) {
	s.mu.RLock()
	msgs := s.pairLocked(userA, userB)
	out := make([]*domain.Message, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, senderID, receiverID string, readAt time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, m := range s.byID {
		if m.SenderID == senderID && m.ReceiverID == receiverID && m.ReadAt == nil {
			t := readAt
			m.ReadAt = &t
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, receiverID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.byID {
		if m.ReceiverID == receiverID && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}
