package ai

import (
	"encoding/json"
	"fmt"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

// Chat Completions wire shapes, shared by the OpenAI adapter and the
// OpenAI-compatible gateway adapter.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"` // always "function"
	Function chatFunction `json:"function"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string         `json:"role"`
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func toChatMessages(messages []adapter.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// toChatTools translates the catalog into the Chat Completions tool
// declaration shape. Total and order-preserving: every descriptor maps to
// exactly one declaration.
func toChatTools(tools []adapter.Tool) []chatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromChatResponse(payload chatResponse) adapter.ModelResponse {
	resp := adapter.ModelResponse{FinishReason: adapter.FinishStop}
	if payload.Usage != nil {
		resp.Usage = &adapter.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		}
	}
	if len(payload.Choices) == 0 {
		resp.FinishReason = adapter.FinishError
		resp.Content = "The model returned no choices."
		return resp
	}

	choice := payload.Choices[0]
	resp.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed argument JSON is passed through as empty args; the
			// dispatcher will surface the tool's own validation error.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		resp.ToolCalls = append(resp.ToolCalls, adapter.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	switch {
	case len(resp.ToolCalls) > 0:
		resp.FinishReason = adapter.FinishToolUse
	case choice.FinishReason == "length":
		resp.FinishReason = adapter.FinishLength
	}
	return resp
}

// errorResponse sanitizes a failure into a total ModelResponse. Transport
// details never reach conversation history.
func errorResponse(provider, msg string) adapter.ModelResponse {
	return adapter.ModelResponse{
		Content:      fmt.Sprintf("The %s request failed: %s. Please try again.", provider, msg),
		FinishReason: adapter.FinishError,
	}
}
