package repository

import (
	"context"

	"onchain-ai-assistant/internal/domain/model"
)

// ChatSessionRepository persists whole session snapshots (messages, turn
// count, accumulated cost). It only serializes and deserializes; the
// session governor owns all mutation.
type ChatSessionRepository interface {
	Save(ctx context.Context, session *model.ChatSession) error
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)
	Delete(ctx context.Context, id string) error
}
