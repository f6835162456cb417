package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type ChatSessionStatus string

const (
	ChatSessionActive   ChatSessionStatus = "active"
	ChatSessionFinished ChatSessionStatus = "finished"
)

// Message roles. Tool results re-enter the conversation as system messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents one message within a chat session.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string // "user" | "assistant" | "system"
	Content   string
	Timestamp time.Time
}

// ChatSession is the aggregate root for a running conversation with the
// agent. The leading system message is fixed at creation; the history only
// grows by whole-message append, except for a full Reset. One governor owns
// and mutates a session for its whole lifetime; there is no concurrent
// writer.
type ChatSession struct {
	ID              string
	Model           string
	Status          ChatSessionStatus
	Messages        []ChatMessage
	TurnCount       int
	TotalCostMicros int64
	StartTime       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewChatSession(id, model, systemPrompt string) *ChatSession {
	now := time.Now()
	s := &ChatSession{
		ID:        id,
		Model:     model,
		Status:    ChatSessionActive,
		Messages:  make([]ChatMessage, 0, 8),
		StartTime: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Messages = append(s.Messages, ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: id,
		Role:      RoleSystem,
		Content:   systemPrompt,
		Timestamp: now,
	})
	return s
}

// AddMessage appends one whole message and returns a pointer to it.
func (s *ChatSession) AddMessage(role, content string) *ChatMessage {
	s.Messages = append(s.Messages, ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
	return &s.Messages[len(s.Messages)-1]
}

// SystemPrompt returns the fixed leading system message.
func (s *ChatSession) SystemPrompt() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].Content
}

// Reset drops everything except the leading system message and zeroes the
// turn and cost counters. This is the only permitted full-state reset.
func (s *ChatSession) Reset() {
	now := time.Now()
	s.Messages = s.Messages[:1]
	s.TurnCount = 0
	s.TotalCostMicros = 0
	s.StartTime = now
	s.UpdatedAt = now
}

func (s *ChatSession) GetRecentMessages(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
