package web

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"onchain-ai-assistant/internal/domain"
	"onchain-ai-assistant/internal/domain/model"
	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/usecase"
)

// AgentFactory builds a governor for one session. providerName may be
// empty for the configured default.
type AgentFactory func(sessionID, providerName string) (usecase.AgentUseCase, error)

// managedSession serializes turns: a session has exactly one in-flight
// turn at a time, concurrent requests queue on the mutex.
type managedSession struct {
	mu sync.Mutex
	uc usecase.AgentUseCase
}

type SessionManager struct {
	mu      sync.Mutex
	byID    map[string]*managedSession
	factory AgentFactory
	purge   func(ctx context.Context, id string) error // nil when memory-only
}

func NewSessionManager(factory AgentFactory, purge func(ctx context.Context, id string) error) *SessionManager {
	return &SessionManager{
		byID:    make(map[string]*managedSession),
		factory: factory,
		purge:   purge,
	}
}

func (sm *SessionManager) Create(providerName string) (*model.ChatSession, error) {
	uc, err := sm.factory(uuid.NewString(), providerName)
	if err != nil {
		return nil, err
	}
	s := uc.Session()

	sm.mu.Lock()
	sm.byID[s.ID] = &managedSession{uc: uc}
	sm.mu.Unlock()
	return s, nil
}

// lookup revives a persisted session on a cold hit, so clients survive a
// process restart without losing history.
func (sm *SessionManager) lookup(ctx context.Context, id string) (*managedSession, error) {
	sm.mu.Lock()
	ms, ok := sm.byID[id]
	sm.mu.Unlock()
	if ok {
		return ms, nil
	}

	uc, err := sm.factory(id, "")
	if err != nil {
		return nil, err
	}
	if err := uc.Resume(ctx); err != nil {
		return nil, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if existing, ok := sm.byID[id]; ok {
		return existing, nil
	}
	ms = &managedSession{uc: uc}
	sm.byID[id] = ms
	return ms, nil
}

func (sm *SessionManager) Snapshot(ctx context.Context, id string) (*model.ChatSession, error) {
	ms, err := sm.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.uc.Session(), nil
}

func (sm *SessionManager) SendMessage(ctx context.Context, id, message string) (string, *model.ChatSession, error) {
	ms, err := sm.lookup(ctx, id)
	if err != nil {
		return "", nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	reply, err := ms.uc.SendMessage(ctx, message)
	if err != nil {
		return "", nil, err
	}
	return reply, ms.uc.Session(), nil
}

// SendMessageStream holds the session lock until drain is called, keeping
// the one-turn-at-a-time rule while the response streams out.
func (sm *SessionManager) SendMessageStream(ctx context.Context, id, message string) (<-chan adapter.StreamChunk, func(), error) {
	ms, err := sm.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ms.mu.Lock()
	chunks, err := ms.uc.SendMessageStream(ctx, message)
	if err != nil {
		ms.mu.Unlock()
		return nil, nil, err
	}
	return chunks, ms.mu.Unlock, nil
}

func (sm *SessionManager) Reset(ctx context.Context, id string) error {
	ms, err := sm.lookup(ctx, id)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.uc.ClearHistory(ctx)
}

func (sm *SessionManager) Delete(ctx context.Context, id string) error {
	sm.mu.Lock()
	_, ok := sm.byID[id]
	delete(sm.byID, id)
	sm.mu.Unlock()

	if sm.purge != nil {
		return sm.purge(ctx, id)
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}
