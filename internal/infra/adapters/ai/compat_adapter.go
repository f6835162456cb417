// File: internal/infra/adapters/ai/compat_adapter.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"onchain-ai-assistant/internal/domain"
	"onchain-ai-assistant/internal/domain/ports/adapter"
)

var _ adapter.ModelProvider = (*CompatAdapter)(nil)

// CompatAdapter talks to any OpenAI-compatible gateway (self-hosted
// routers, aggregators). Chat only: these gateways advertise SSE but many
// implement it poorly, so callers get the replay fallback instead.
type CompatAdapter struct {
	apiKey  string
	base    string
	model   string
	pricing adapter.Pricing
	client  *http.Client
}

func NewCompatAdapter(apiKey, baseURL, model string, pricing adapter.Pricing) (*CompatAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("compat: empty api key")
	}
	if baseURL == "" {
		return nil, errors.New("compat: empty base url")
	}
	if model == "" {
		return nil, errors.New("compat: empty model")
	}
	return &CompatAdapter{
		apiKey:  apiKey,
		base:    baseURL,
		model:   model,
		pricing: pricing,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *CompatAdapter) Name() string             { return "compat" }
func (c *CompatAdapter) Model() string            { return c.model }
func (c *CompatAdapter) Pricing() adapter.Pricing { return c.pricing }
func (c *CompatAdapter) SupportsStreaming() bool  { return false }

func (c *CompatAdapter) EstimateCostMicros(messages []adapter.Message) int64 {
	return estimateCostMicros(messages, c.pricing)
}

func (c *CompatAdapter) Chat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) adapter.ModelResponse {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: toChatMessages(messages),
		Tools:    toChatTools(tools),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errorResponse("compat", "the request could not be encoded")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return errorResponse("compat", "the request could not be built")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return errorResponse("compat", "the gateway could not be reached")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errorResponse("compat", "the response could not be read")
	}
	if resp.StatusCode != http.StatusOK {
		return errorResponse("compat", fmt.Sprintf("the gateway returned status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errorResponse("compat", "the response could not be decoded")
	}
	return fromChatResponse(parsed)
}

func (c *CompatAdapter) StreamChat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) (<-chan adapter.StreamChunk, error) {
	return nil, fmt.Errorf("compat: %w", domain.ErrStreamNotSupported)
}
