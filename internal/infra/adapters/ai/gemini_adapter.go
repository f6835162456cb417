// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

var _ adapter.ModelProvider = (*GeminiAdapter)(nil)

// GeminiAdapter implements adapter.ModelProvider using the official SDK,
// with the tool catalog translated to function declarations.
type GeminiAdapter struct {
	client  *genai.Client
	model   string
	pricing adapter.Pricing
	maxOut  int32
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, pricing adapter.Pricing) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, model: model, pricing: pricing, maxOut: 4096}, nil
}

func (g *GeminiAdapter) Name() string             { return "gemini" }
func (g *GeminiAdapter) Model() string            { return g.model }
func (g *GeminiAdapter) Pricing() adapter.Pricing { return g.pricing }
func (g *GeminiAdapter) SupportsStreaming() bool  { return true }

func (g *GeminiAdapter) EstimateCostMicros(messages []adapter.Message) int64 {
	return estimateCostMicros(messages, g.pricing)
}

func (g *GeminiAdapter) Chat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) adapter.ModelResponse {
	contents, config := g.buildRequest(messages, tools)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return errorResponse("gemini", "the upstream request could not be completed")
	}
	return fromGenAIResponse(resp)
}

func (g *GeminiAdapter) StreamChat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) (<-chan adapter.StreamChunk, error) {
	contents, config := g.buildRequest(messages, tools)
	out := make(chan adapter.StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				select {
				case out <- adapter.StreamChunk{Err: errors.New("gemini stream: the stream was interrupted"), Done: true}:
				case <-ctx.Done():
				}
				return
			}
			delta := streamText(resp)
			if delta == "" {
				continue
			}
			select {
			case out <- adapter.StreamChunk{Delta: delta}:
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

// --- internal ---

func (g *GeminiAdapter) buildRequest(messages []adapter.Message, tools []adapter.Tool) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxOut,
	}
	if decls := toFunctionDeclarations(tools); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := make([]*genai.Content, 0, len(messages))
	for i, m := range messages {
		// The leading system message becomes the system instruction; any
		// later system message (tool results) is folded in as a user turn.
		if i == 0 && strings.EqualFold(m.Role, "system") {
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
			continue
		}
		role := genai.RoleUser
		if strings.EqualFold(m.Role, "assistant") {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents, config
}

// toFunctionDeclarations translates the catalog to the SDK's declaration
// shape. Total and order-preserving, like the Chat Completions translation.
func toFunctionDeclarations(tools []adapter.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenAISchema(t.Parameters),
		})
	}
	return decls
}

func toGenAISchema(schema map[string]any) *genai.Schema {
	if len(schema) == 0 {
		return nil
	}
	out := &genai.Schema{}

	if typ, ok := schema["type"].(string); ok {
		switch strings.ToLower(typ) {
		case "object":
			out.Type = genai.TypeObject
		case "string":
			out.Type = genai.TypeString
		case "number":
			out.Type = genai.TypeNumber
		case "integer":
			out.Type = genai.TypeInteger
		case "boolean":
			out.Type = genai.TypeBoolean
		case "array":
			out.Type = genai.TypeArray
		}
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]any); ok {
				out.Properties[name] = toGenAISchema(subMap)
			}
		}
	}
	if req, ok := schema["required"].([]string); ok {
		out.Required = req
	} else if reqAny, ok := schema["required"].([]any); ok {
		for _, r := range reqAny {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toGenAISchema(items)
	}
	if enum, ok := schema["enum"].([]string); ok {
		out.Enum = enum
	}
	return out
}

func fromGenAIResponse(resp *genai.GenerateContentResponse) adapter.ModelResponse {
	out := adapter.ModelResponse{FinishReason: adapter.FinishStop}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		out.FinishReason = adapter.FinishError
		out.Content = "The model returned no candidates."
		return out
	}

	cand := resp.Candidates[0]
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, adapter.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	out.Content = text.String()

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = adapter.FinishToolUse
	case cand.FinishReason == genai.FinishReasonMaxTokens:
		out.FinishReason = adapter.FinishLength
	}

	if resp.UsageMetadata != nil {
		out.Usage = &adapter.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}

func streamText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
