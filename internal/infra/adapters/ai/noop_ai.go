// File: internal/infra/adapters/ai/noop_ai.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

var _ adapter.ModelProvider = (*NoopProvider)(nil)

// NoopProvider is a deterministic provider for local development and
// smoke tests. It echoes the last user message and never calls tools.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider { return &NoopProvider{} }

func (n *NoopProvider) Name() string             { return "noop" }
func (n *NoopProvider) Model() string            { return "noop-echo" }
func (n *NoopProvider) Pricing() adapter.Pricing { return adapter.Pricing{} }
func (n *NoopProvider) SupportsStreaming() bool  { return true }

func (n *NoopProvider) EstimateCostMicros(messages []adapter.Message) int64 { return 0 }

func (n *NoopProvider) Chat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) adapter.ModelResponse {
	return adapter.ModelResponse{
		Content:      n.reply(messages),
		FinishReason: adapter.FinishStop,
		Usage:        &adapter.Usage{},
	}
}

func (n *NoopProvider) StreamChat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) (<-chan adapter.StreamChunk, error) {
	reply := n.reply(messages)
	out := make(chan adapter.StreamChunk)
	go func() {
		defer close(out)
		for _, word := range strings.SplitAfter(reply, " ") {
			select {
			case out <- adapter.StreamChunk{Delta: word}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- adapter.StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (n *NoopProvider) reply(messages []adapter.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			return fmt.Sprintf("Echo: %s", messages[i].Content)
		}
	}
	return "Echo: (no user message)"
}
