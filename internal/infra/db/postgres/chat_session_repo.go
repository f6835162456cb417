// File: internal/infra/db/postgres/chat_session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"onchain-ai-assistant/internal/domain"
	"onchain-ai-assistant/internal/domain/model"
	"onchain-ai-assistant/internal/domain/ports/repository"
	"onchain-ai-assistant/internal/infra/redis"
	"onchain-ai-assistant/internal/infra/security"
)

var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

// ChatSessionRepo persists whole session snapshots. Messages are
// append-only with ULID primary keys, so re-saving a snapshot re-inserts
// nothing: existing rows conflict by id and are skipped.
type ChatSessionRepo struct {
	pool  *pgxpool.Pool
	cache *redis.ChatCache
	enc   *security.EncryptionService // nil disables encryption at rest
}

func NewChatSessionRepo(pool *pgxpool.Pool, cache *redis.ChatCache, enc *security.EncryptionService) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool, cache: cache, enc: enc}
}

func (r *ChatSessionRepo) Save(ctx context.Context, session *model.ChatSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const qs = `
INSERT INTO chat_sessions (id, model, status, turn_count, total_cost_micros, start_time, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  model = EXCLUDED.model,
  status = EXCLUDED.status,
  turn_count = EXCLUDED.turn_count,
  total_cost_micros = EXCLUDED.total_cost_micros,
  start_time = EXCLUDED.start_time,
  updated_at = EXCLUDED.updated_at;`
	if _, err := tx.Exec(ctx, qs,
		session.ID, session.Model, string(session.Status),
		session.TurnCount, session.TotalCostMicros,
		session.StartTime, session.CreatedAt, session.UpdatedAt,
	); err != nil {
		return mapPgError("save session", err)
	}

	// Reset shrinks history; clear and re-insert so the stored snapshot
	// never holds messages the session no longer has.
	if _, err := tx.Exec(ctx, `DELETE FROM chat_messages WHERE session_id=$1 AND id <> ALL($2);`,
		session.ID, messageIDs(session)); err != nil {
		return mapPgError("prune messages", err)
	}

	const qm = `
INSERT INTO chat_messages (id, session_id, role, content, encrypted, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING;`
	for i := range session.Messages {
		m := &session.Messages[i]
		payload := m.Content
		encFlag := false
		if r.enc != nil {
			payload, err = r.enc.Encrypt(m.Content)
			if err != nil {
				return fmt.Errorf("encrypt message: %w", err)
			}
			encFlag = true
		}
		if _, err := tx.Exec(ctx, qm, m.ID, m.SessionID, m.Role, payload, encFlag, m.Timestamp); err != nil {
			return mapPgError("save message", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if r.cache != nil {
		_ = r.cache.StoreSession(ctx, session)
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	if r.cache != nil {
		if s, err := r.cache.GetSession(ctx, id); err == nil && s != nil {
			return s, nil
		}
	}

	const qs = `
SELECT id, model, status, turn_count, total_cost_micros, start_time, created_at, updated_at
  FROM chat_sessions WHERE id=$1;`
	var s model.ChatSession
	var status string
	if err := r.pool.QueryRow(ctx, qs, id).Scan(
		&s.ID, &s.Model, &status, &s.TurnCount, &s.TotalCostMicros,
		&s.StartTime, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.Status = model.ChatSessionStatus(status)

	// ULIDs sort by creation time, so ordering by id reproduces append order.
	const qm = `SELECT id, role, content, encrypted, created_at FROM chat_messages WHERE session_id=$1 ORDER BY id ASC;`
	rows, err := r.pool.Query(ctx, qm, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		m := model.ChatMessage{SessionID: s.ID}
		var encrypted bool
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &encrypted, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if encrypted {
			if r.enc == nil {
				return nil, fmt.Errorf("message %s is encrypted but no key is configured", m.ID)
			}
			plain, err := r.enc.Decrypt(m.Content)
			if err != nil {
				return nil, fmt.Errorf("decrypt message: %w", err)
			}
			m.Content = plain
		}
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}

	if r.cache != nil {
		_ = r.cache.StoreSession(ctx, &s)
	}
	return &s, nil
}

func (r *ChatSessionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM chat_sessions WHERE id=$1;`, id); err != nil {
		return mapPgError("delete session", err)
	}
	if r.cache != nil {
		_ = r.cache.DeleteSession(ctx, id)
	}
	return nil
}

func messageIDs(session *model.ChatSession) []string {
	ids := make([]string, 0, len(session.Messages))
	for i := range session.Messages {
		ids = append(ids, session.Messages[i].ID)
	}
	return ids
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}
