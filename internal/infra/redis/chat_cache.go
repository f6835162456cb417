package redis

import (
	"context"
	"encoding/json"
	"time"

	"onchain-ai-assistant/internal/domain/model"
)

// ChatCache keeps recent session snapshots next to postgres so a
// just-resumed session does not need a full message scan.
type ChatCache struct {
	client *redClient
	ttl    time.Duration
}

func NewChatCache(client *redClient, ttl time.Duration) *ChatCache {
	return &ChatCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ChatCache) StoreSession(ctx context.Context, session *model.ChatSession) error {
	key := "chat_session:" + session.ID
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl)
}

func (c *ChatCache) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	key := "chat_session:" + sessionID
	data, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var session model.ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *ChatCache) DeleteSession(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, "chat_session:"+sessionID)
}

func (c *ChatCache) ExtendSession(ctx context.Context, sessionID string) error {
	return c.client.Expire(ctx, "chat_session:"+sessionID, c.ttl)
}
