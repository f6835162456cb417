package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"onchain-ai-assistant/internal/domain"
	"onchain-ai-assistant/internal/domain/model"
	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/tool"
)

//
// ---------------- in-memory fakes ----------------
//

type scriptedProvider struct {
	responses      []adapter.ModelResponse
	calls          int
	pricing        adapter.Pricing
	estimate       int64
	supportsStream bool
	streamDeltas   []string
}

func (p *scriptedProvider) Name() string             { return "scripted" }
func (p *scriptedProvider) Model() string            { return "scripted-1" }
func (p *scriptedProvider) Pricing() adapter.Pricing { return p.pricing }
func (p *scriptedProvider) SupportsStreaming() bool  { return p.supportsStream }

func (p *scriptedProvider) EstimateCostMicros(messages []adapter.Message) int64 {
	return p.estimate
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) adapter.ModelResponse {
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx]
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []adapter.Message, tools []adapter.Tool) (<-chan adapter.StreamChunk, error) {
	if !p.supportsStream {
		return nil, domain.ErrStreamNotSupported
	}
	out := make(chan adapter.StreamChunk, len(p.streamDeltas)+1)
	for _, d := range p.streamDeltas {
		out <- adapter.StreamChunk{Delta: d}
	}
	out <- adapter.StreamChunk{Done: true}
	close(out)
	return out, nil
}

type memSessionRepo struct {
	byID  map[string]*model.ChatSession
	saves int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: map[string]*model.ChatSession{}}
}

func (m *memSessionRepo) Save(ctx context.Context, s *model.ChatSession) error {
	cp := *s
	cp.Messages = append([]model.ChatMessage(nil), s.Messages...)
	m.byID[s.ID] = &cp
	m.saves++
	return nil
}

func (m *memSessionRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Messages = append([]model.ChatMessage(nil), s.Messages...)
	return &cp, nil
}

func (m *memSessionRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

//
// ---------------- helpers ----------------
//

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newCatalogWithPriceTool(t *testing.T) *tool.Catalog {
	t.Helper()
	catalog := tool.NewCatalog()
	err := catalog.Register(adapter.Tool{
		Name:        "get_token_price",
		Description: "price lookup",
		Parameters:  map[string]any{"type": "object"},
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return `{"symbol":"UNI","price":"$80.50"}`, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return catalog
}

func newAgent(t *testing.T, provider adapter.ModelProvider, catalog *tool.Catalog, repo *memSessionRepo, maxTurns int, maxCostMicros int64) *agentUC {
	t.Helper()
	if catalog == nil {
		catalog = tool.NewCatalog()
	}
	dispatcher := tool.NewDispatcher(catalog, testLogger())
	uc := NewAgentUseCase("sess-1", "You are a helpful assistant.", provider, dispatcher, catalog, nil, maxTurns, maxCostMicros, testLogger())
	if repo != nil {
		uc.sessions = repo
	}
	return uc
}

func roles(s *model.ChatSession) []string {
	out := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m.Role)
	}
	return out
}

//
// ---------------- tests ----------------
//

func TestSendMessageSimpleReply(t *testing.T) {
	provider := &scriptedProvider{
		pricing: adapter.Pricing{InputMicrosPer1K: 1000, OutputMicrosPer1K: 2000},
		responses: []adapter.ModelResponse{{
			Content:      "hello there",
			FinishReason: adapter.FinishStop,
			Usage:        &adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}},
	}
	uc := newAgent(t, provider, nil, nil, 10, 0)

	reply, err := uc.SendMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("reply = %q", reply)
	}

	s := uc.Session()
	if s.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", s.TurnCount)
	}
	// 10 in * 1000/1K + 5 out * 2000/1K = 20 micro-USD
	if s.TotalCostMicros != 20 {
		t.Fatalf("TotalCostMicros = %d, want 20", s.TotalCostMicros)
	}
	want := []string{model.RoleSystem, model.RoleUser, model.RoleAssistant}
	if got := roles(s); !equalStrings(got, want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}
}

func TestSendMessageRunsToolLoop(t *testing.T) {
	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{
			{
				ToolCalls:    []adapter.ToolCall{{ID: "1", Name: "get_token_price", Arguments: map[string]any{"symbol": "UNI"}}},
				FinishReason: adapter.FinishToolUse,
			},
			{Content: "UNI is trading at $80.50.", FinishReason: adapter.FinishStop},
		},
	}
	uc := newAgent(t, provider, newCatalogWithPriceTool(t), nil, 10, 0)

	reply, err := uc.SendMessage(context.Background(), "what is the UNI price?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !strings.Contains(reply, "$80.50") {
		t.Fatalf("reply = %q, want it to carry the fetched price", reply)
	}

	s := uc.Session()
	want := []string{
		model.RoleSystem,    // prompt
		model.RoleUser,      // question
		model.RoleAssistant, // tool invocation summary
		model.RoleSystem,    // tool results
		model.RoleAssistant, // final answer
	}
	if got := roles(s); !equalStrings(got, want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}
	if !strings.Contains(s.Messages[2].Content, "Invoking tools: get_token_price") {
		t.Fatalf("tool summary = %q", s.Messages[2].Content)
	}
	if !strings.Contains(s.Messages[3].Content, "$80.50") {
		t.Fatalf("tool results = %q", s.Messages[3].Content)
	}
	if provider.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", provider.calls)
	}
}

func TestToolLoopStopsAtCeiling(t *testing.T) {
	// A model that never stops asking for tools must be cut off, and the
	// ceiling is not an error for the caller.
	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{{
			ToolCalls:    []adapter.ToolCall{{ID: "1", Name: "get_token_price", Arguments: map[string]any{"symbol": "UNI"}}},
			FinishReason: adapter.FinishToolUse,
		}},
	}
	uc := newAgent(t, provider, newCatalogWithPriceTool(t), nil, 10, 0)

	reply, err := uc.SendMessage(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != fallbackNotice {
		t.Fatalf("reply = %q, want fallback notice", reply)
	}
	// initial call + one per iteration
	if provider.calls != maxToolIterations+1 {
		t.Fatalf("provider calls = %d, want %d", provider.calls, maxToolIterations+1)
	}
	// prompt + user + 5x(assistant summary + tool results) + final assistant
	if got := len(uc.Session().Messages); got != 2+2*maxToolIterations+1 {
		t.Fatalf("message count = %d", got)
	}
}

func TestTurnLimitBlocksWithoutMutation(t *testing.T) {
	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{{Content: "ok", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 2, 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := uc.SendMessage(ctx, "hello"); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}

	before := len(uc.Session().Messages)
	_, err := uc.SendMessage(ctx, "one more")
	if !errors.Is(err, domain.ErrTurnLimitExceeded) {
		t.Fatalf("err = %v, want ErrTurnLimitExceeded", err)
	}
	if got := len(uc.Session().Messages); got != before {
		t.Fatalf("blocked turn mutated history: %d -> %d messages", before, got)
	}
	if uc.Session().TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want 2", uc.Session().TurnCount)
	}
}

func TestCostLimitBoundaryIsInclusive(t *testing.T) {
	provider := &scriptedProvider{
		estimate:  100,
		responses: []adapter.ModelResponse{{Content: "ok", FinishReason: adapter.FinishStop}},
	}
	// estimate == remaining budget: admitted
	uc := newAgent(t, provider, nil, nil, 0, 100)
	if _, err := uc.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("turn at exact budget should be admitted: %v", err)
	}
}

func TestCostLimitBlocksWithoutMutation(t *testing.T) {
	provider := &scriptedProvider{
		estimate:  101,
		responses: []adapter.ModelResponse{{Content: "ok", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 0, 100)

	before := len(uc.Session().Messages)
	_, err := uc.SendMessage(context.Background(), "hi")
	if !errors.Is(err, domain.ErrCostLimitExceeded) {
		t.Fatalf("err = %v, want ErrCostLimitExceeded", err)
	}
	if got := len(uc.Session().Messages); got != before {
		t.Fatalf("blocked turn mutated history")
	}
	if uc.Session().TurnCount != 0 {
		t.Fatalf("TurnCount = %d, want 0", uc.Session().TurnCount)
	}
	if provider.calls != 0 {
		t.Fatalf("provider was called on a blocked turn")
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{{Content: "ok", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 0, 0)
	if _, err := uc.SendMessage(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestStreamReplayWhenUnsupported(t *testing.T) {
	provider := &scriptedProvider{
		supportsStream: false,
		responses:      []adapter.ModelResponse{{Content: "full reply", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 0, 0)

	chunks, err := uc.SendMessageStream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	var deltas []string
	for c := range chunks {
		if c.Delta != "" {
			deltas = append(deltas, c.Delta)
		}
	}
	if len(deltas) != 1 || deltas[0] != "full reply" {
		t.Fatalf("deltas = %v, want single full-reply chunk", deltas)
	}
	last := uc.Session().Messages[len(uc.Session().Messages)-1]
	if last.Role != model.RoleAssistant || last.Content != "full reply" {
		t.Fatalf("history tail = %s %q", last.Role, last.Content)
	}
}

func TestStreamDeliversDeltasAndCommitsAfterDrain(t *testing.T) {
	provider := &scriptedProvider{
		supportsStream: true,
		streamDeltas:   []string{"Hel", "lo ", "world"},
		responses:      []adapter.ModelResponse{{Content: "Hello world", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 0, 0)

	chunks, err := uc.SendMessageStream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	var sb strings.Builder
	for c := range chunks {
		sb.WriteString(c.Delta)
	}
	if sb.String() != "Hello world" {
		t.Fatalf("streamed = %q", sb.String())
	}

	s := uc.Session()
	last := s.Messages[len(s.Messages)-1]
	if last.Role != model.RoleAssistant || last.Content != "Hello world" {
		t.Fatalf("history tail = %s %q", last.Role, last.Content)
	}
	// Same shape a buffered turn leaves behind.
	want := []string{model.RoleSystem, model.RoleUser, model.RoleAssistant}
	if got := roles(s); !equalStrings(got, want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}
	if s.TurnCount != 1 {
		t.Fatalf("TurnCount = %d, want 1", s.TurnCount)
	}
}

func TestClearHistoryKeepsPromptAndZeroesCounters(t *testing.T) {
	provider := &scriptedProvider{
		pricing: adapter.Pricing{InputMicrosPer1K: 1000, OutputMicrosPer1K: 1000},
		responses: []adapter.ModelResponse{{
			Content:      "ok",
			FinishReason: adapter.FinishStop,
			Usage:        &adapter.Usage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
		}},
	}
	repo := newMemSessionRepo()
	uc := newAgent(t, provider, nil, repo, 0, 0)

	ctx := context.Background()
	if _, err := uc.SendMessage(ctx, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := uc.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}

	s := uc.Session()
	if len(s.Messages) != 1 || s.Messages[0].Role != model.RoleSystem {
		t.Fatalf("history after reset = %v", roles(s))
	}
	if s.SystemPrompt() != "You are a helpful assistant." {
		t.Fatalf("system prompt lost: %q", s.SystemPrompt())
	}
	if s.TurnCount != 0 || s.TotalCostMicros != 0 {
		t.Fatalf("counters not zeroed: turns=%d cost=%d", s.TurnCount, s.TotalCostMicros)
	}
	if repo.saves == 0 {
		t.Fatalf("reset was not persisted")
	}
}

func TestResumeLoadsPersistedSnapshot(t *testing.T) {
	repo := newMemSessionRepo()
	stored := model.NewChatSession("sess-1", "scripted-1", "You are a helpful assistant.")
	stored.AddMessage(model.RoleUser, "earlier question")
	stored.AddMessage(model.RoleAssistant, "earlier answer")
	stored.TurnCount = 1
	if err := repo.Save(context.Background(), stored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{{Content: "ok", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, repo, 0, 0)
	if err := uc.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if uc.Session().TurnCount != 1 || len(uc.Session().Messages) != 3 {
		t.Fatalf("resumed session: turns=%d messages=%d", uc.Session().TurnCount, len(uc.Session().Messages))
	}
}

func TestUnknownToolResultFlowsBack(t *testing.T) {
	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{
			{
				ToolCalls:    []adapter.ToolCall{{ID: "1", Name: "get_weather", Arguments: map[string]any{}}},
				FinishReason: adapter.FinishToolUse,
			},
			{Content: "I cannot check the weather.", FinishReason: adapter.FinishStop},
		},
	}
	uc := newAgent(t, provider, newCatalogWithPriceTool(t), nil, 0, 0)

	if _, err := uc.SendMessage(context.Background(), "weather in Paris?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	// The unknown-tool error is data in history, not a failure.
	results := uc.Session().Messages[3].Content
	if !strings.Contains(results, "Unknown tool: get_weather") {
		t.Fatalf("tool results = %q", results)
	}
}

func TestStreamFallsBackWhenToolLoopUnresolved(t *testing.T) {
	// The provider never stops asking for tools, so the loop exits at the
	// ceiling with tool calls still outstanding. Streaming a fresh
	// completion over that unconverged history is wrong; the buffered
	// answer must replay as one chunk instead.
	provider := &scriptedProvider{
		supportsStream: true,
		streamDeltas:   []string{"live stream text"},
		responses: []adapter.ModelResponse{{
			ToolCalls:    []adapter.ToolCall{{ID: "1", Name: "get_token_price", Arguments: map[string]any{"symbol": "UNI"}}},
			FinishReason: adapter.FinishToolUse,
		}},
	}
	uc := newAgent(t, provider, newCatalogWithPriceTool(t), nil, 0, 0)

	chunks, err := uc.SendMessageStream(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	var deltas []string
	for c := range chunks {
		if c.Delta != "" {
			deltas = append(deltas, c.Delta)
		}
	}
	if len(deltas) != 1 || deltas[0] != fallbackNotice {
		t.Fatalf("deltas = %v, want single fallback-notice chunk", deltas)
	}
	last := uc.Session().Messages[len(uc.Session().Messages)-1]
	if last.Content != fallbackNotice {
		t.Fatalf("history tail = %q, want fallback notice", last.Content)
	}
	if provider.calls != maxToolIterations+1 {
		t.Fatalf("provider calls = %d, want %d", provider.calls, maxToolIterations+1)
	}
}

func TestStreamCommitsBeforeDoneDelivered(t *testing.T) {
	// A consumer that stops at the Done chunk (as the HTTP handler does)
	// may hand the session to the next turn right away, so the assistant
	// append must already be visible at that point.
	provider := &scriptedProvider{
		supportsStream: true,
		streamDeltas:   []string{"Hello ", "world"},
		responses:      []adapter.ModelResponse{{Content: "Hello world", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 0, 0)

	chunks, err := uc.SendMessageStream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("SendMessageStream: %v", err)
	}
	for c := range chunks {
		if !c.Done {
			continue
		}
		s := uc.Session()
		last := s.Messages[len(s.Messages)-1]
		if last.Role != model.RoleAssistant || last.Content != "Hello world" {
			t.Fatalf("at Done, history tail = %s %q, want committed assistant reply", last.Role, last.Content)
		}
		return
	}
	t.Fatal("stream ended without a Done chunk")
}

func TestResumeWithoutRepositoryReportsNotFound(t *testing.T) {
	provider := &scriptedProvider{
		responses: []adapter.ModelResponse{{Content: "ok", FinishReason: adapter.FinishStop}},
	}
	uc := newAgent(t, provider, nil, nil, 0, 0)

	if err := uc.Resume(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Resume without repository = %v, want ErrNotFound", err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
