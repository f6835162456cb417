package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ModelProvider = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.ModelProvider using the Chat Completions
// API, including native tool calling and SSE streaming.
type OpenAIAdapter struct {
	apiKey  string
	base    string // e.g., https://api.openai.com/v1
	model   string
	pricing adapter.Pricing
	client  *http.Client
}

func NewOpenAIAdapter(apiKey, model string, pricing adapter.Pricing) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		apiKey:  apiKey,
		base:    "https://api.openai.com/v1",
		model:   model,
		pricing: pricing,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAIAdapter) Name() string             { return "openai" }
func (o *OpenAIAdapter) Model() string            { return o.model }
func (o *OpenAIAdapter) Pricing() adapter.Pricing { return o.pricing }
func (o *OpenAIAdapter) SupportsStreaming() bool  { return true }

func (o *OpenAIAdapter) EstimateCostMicros(messages []adapter.Message) int64 {
	return estimateCostMicros(messages, o.pricing)
}

func (o *OpenAIAdapter) Chat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) adapter.ModelResponse {
	resp, err := o.post(ctx, chatRequest{
		Model:    o.model,
		Messages: toChatMessages(messages),
		Tools:    toChatTools(tools),
	})
	if err != nil {
		return errorResponse("openai", "the upstream request could not be completed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errorResponse("openai", fmt.Sprintf("http %d", resp.StatusCode))
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errorResponse("openai", "the response could not be decoded")
	}
	return fromChatResponse(payload)
}

func (o *OpenAIAdapter) StreamChat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) (<-chan adapter.StreamChunk, error) {
	resp, err := o.post(ctx, chatRequest{
		Model:    o.model,
		Messages: toChatMessages(messages),
		Tools:    toChatTools(tools),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai stream: upstream request failed")
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("openai stream: http %d", resp.StatusCode)
	}

	out := make(chan adapter.StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- adapter.StreamChunk{Delta: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- adapter.StreamChunk{Err: errors.New("openai stream: the stream was interrupted"), Done: true}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- adapter.StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (o *OpenAIAdapter) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	return o.client.Do(req)
}
