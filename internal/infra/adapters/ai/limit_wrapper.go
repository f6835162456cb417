package ai

import (
	"context"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ModelProvider = (*limitedProvider)(nil)

type limitedProvider struct {
	inner adapter.ModelProvider
	sem   chan struct{}
}

// NewLimitedProvider caps how many model calls run at once across all
// sessions sharing this provider.
func NewLimitedProvider(inner adapter.ModelProvider, maxConcurrent int) adapter.ModelProvider {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedProvider{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedProvider) Name() string             { return l.inner.Name() }
func (l *limitedProvider) Model() string            { return l.inner.Model() }
func (l *limitedProvider) Pricing() adapter.Pricing { return l.inner.Pricing() }
func (l *limitedProvider) SupportsStreaming() bool  { return l.inner.SupportsStreaming() }

func (l *limitedProvider) EstimateCostMicros(messages []adapter.Message) int64 {
	return l.inner.EstimateCostMicros(messages)
}

func (l *limitedProvider) Chat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) adapter.ModelResponse {
	l.sem <- struct{}{}
	defer func() { <-l.sem }()
	return l.inner.Chat(ctx, messages, tools)
}

func (l *limitedProvider) StreamChat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) (<-chan adapter.StreamChunk, error) {
	// The slot is held until the stream drains, not just until the call
	// returns, so a slow consumer still counts against the limit.
	l.sem <- struct{}{}
	inner, err := l.inner.StreamChat(ctx, messages, tools)
	if err != nil {
		<-l.sem
		return nil, err
	}
	out := make(chan adapter.StreamChunk)
	go func() {
		defer func() { <-l.sem }()
		defer close(out)
		for chunk := range inner {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
