package model

import "testing"

func TestNewChatSessionSeedsSystemPrompt(t *testing.T) {
	s := NewChatSession("sess-1", "gpt-4o-mini", "You answer on-chain questions.")

	if s.Status != ChatSessionActive {
		t.Errorf("status = %q, want active", s.Status)
	}
	if len(s.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(s.Messages))
	}
	if s.Messages[0].Role != RoleSystem {
		t.Errorf("first message role = %q, want system", s.Messages[0].Role)
	}
	if s.SystemPrompt() != "You answer on-chain questions." {
		t.Errorf("SystemPrompt() = %q", s.SystemPrompt())
	}
}

func TestAddMessageAssignsSortableIDs(t *testing.T) {
	s := NewChatSession("sess-1", "gpt-4o-mini", "prompt")
	first := s.AddMessage(RoleUser, "hello")
	second := s.AddMessage(RoleAssistant, "hi")

	if first.ID == "" || second.ID == "" {
		t.Fatal("messages must get IDs")
	}
	if first.ID >= second.ID {
		t.Errorf("IDs must sort by insertion order: %q >= %q", first.ID, second.ID)
	}
	if first.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", first.SessionID)
	}
}

func TestResetKeepsOnlySystemPrompt(t *testing.T) {
	s := NewChatSession("sess-1", "gpt-4o-mini", "prompt")
	s.AddMessage(RoleUser, "hello")
	s.AddMessage(RoleAssistant, "hi")
	s.TurnCount = 3
	s.TotalCostMicros = 12345

	s.Reset()

	if len(s.Messages) != 1 || s.Messages[0].Role != RoleSystem {
		t.Errorf("after reset messages = %v", s.Messages)
	}
	if s.TurnCount != 0 || s.TotalCostMicros != 0 {
		t.Errorf("counters not zeroed: turns=%d cost=%d", s.TurnCount, s.TotalCostMicros)
	}
}

func TestGetRecentMessages(t *testing.T) {
	s := NewChatSession("sess-1", "gpt-4o-mini", "prompt")
	for i := 0; i < 5; i++ {
		s.AddMessage(RoleUser, "m")
	}

	if got := len(s.GetRecentMessages(3)); got != 3 {
		t.Errorf("recent(3) = %d messages", got)
	}
	if got := len(s.GetRecentMessages(0)); got != 6 {
		t.Errorf("recent(0) = %d messages, want all", got)
	}
	if got := len(s.GetRecentMessages(100)); got != 6 {
		t.Errorf("recent(100) = %d messages, want all", got)
	}
}
