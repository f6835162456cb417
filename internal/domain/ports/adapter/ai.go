package adapter

import "context"

// Message is a single conversation turn in the provider-neutral shape.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Tool is a declarative capability description shared verbatim with every
// provider. Parameters is a JSON Schema object; each adapter translates it
// into its native tool-declaration wire shape.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a provider's request to execute a declared tool. ID is
// provider-assigned and otherwise opaque.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

type FinishReason string

const (
	FinishStop    FinishReason = "stop"
	FinishToolUse FinishReason = "tool_use"
	FinishLength  FinishReason = "length"
	FinishError   FinishReason = "error"
)

// Usage for a single chat call, as reported by the provider. Nil Usage on a
// ModelResponse means the provider reported nothing.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelResponse is the provider-neutral reply shape every adapter produces
// regardless of backend.
type ModelResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        *Usage
}

// StreamChunk is one increment of a streamed reply.
type StreamChunk struct {
	Delta string
	Err   error
	Done  bool
}

// Pricing holds a provider's micro-USD rates per 1K tokens.
type Pricing struct {
	InputMicrosPer1K  int64
	OutputMicrosPer1K int64
}

// CostMicros prices a reported usage with this pricing.
func (p Pricing) CostMicros(u Usage) int64 {
	in := int64(u.PromptTokens) * p.InputMicrosPer1K / 1000
	out := int64(u.CompletionTokens) * p.OutputMicrosPer1K / 1000
	return in + out
}

// ModelProvider is the port for LLM chat with native tool calling. An
// adapter commits to one provider identity and one model at construction.
//
// Chat is total: transport and provider-side failures come back as a
// ModelResponse with FinishReason FinishError and a sanitized
// human-readable Content, never as a panic or an error the caller must
// special-case.
type ModelProvider interface {
	Name() string
	Model() string
	Pricing() Pricing

	Chat(ctx context.Context, messages []Message, tools []Tool) ModelResponse

	// SupportsStreaming reports whether StreamChat is usable. Callers must
	// check it before calling StreamChat.
	SupportsStreaming() bool

	// StreamChat has the same semantics as Chat but emits partial text
	// incrementally. The returned channel is closed when the reply is
	// complete or an error chunk has been sent.
	StreamChat(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamChunk, error)

	// EstimateCostMicros is a cheap, local, deterministic approximation
	// used purely for the cost ceiling. Under-estimation is acceptable;
	// it must be monotonic in history length.
	EstimateCostMicros(messages []Message) int64
}
