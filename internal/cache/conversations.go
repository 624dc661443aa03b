package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/domain"
)

// Conversations is a redis-backed cache of conversation views. The socket
// path and the REST path both write messages, so both invalidate here; reads
// go through the cache on the history endpoint.
type Conversations struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewConversations(client *redis.Client, prefix string, ttl time.Duration) *Conversations {
	if prefix == "" {
		prefix = "chat"
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Conversations{client: client, prefix: prefix, ttl: ttl}
}

func (c *Conversations) key(userA, userB string) string {
	return fmt.Sprintf("%s:conv:%s", c.prefix, domain.ConversationKey(userA, userB))
}

// Get returns the cached view, or (nil, nil) on a miss.
func (c *Conversations) Get(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	b, err := c.client.Get(ctx, c.key(userA, userB)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*domain.Message
	if err := json.Unmarshal(b, &out); err != nil {
		// poisoned entry: drop it and treat as a miss
		_ = c.client.Del(ctx, c.key(userA, userB)).Err()
		return nil, nil
	}
	return out, nil
}

func (c *Conversations) Set(ctx context.Context, userA, userB string, msgs []*domain.Message) error {
	b, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(userA, userB), b, c.ttl).Err()
}

// Invalidate drops the cached view for the pair. One key serves both
// perspectives because the key is canonical on the sorted pair.
func (c *Conversations) Invalidate(ctx context.Context, userA, userB string) error {
	return c.client.Del(ctx, c.key(userA, userB)).Err()
}
