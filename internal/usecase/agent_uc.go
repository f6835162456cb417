// File: internal/usecase/agent_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"onchain-ai-assistant/internal/domain"
	"onchain-ai-assistant/internal/domain/model"
	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/domain/ports/repository"
	"onchain-ai-assistant/internal/infra/logging"
	"onchain-ai-assistant/internal/infra/metrics"
	"onchain-ai-assistant/internal/tool"
)

// maxToolIterations bounds the model->tools->model loop within one user
// turn. Hitting the ceiling degrades to the best available answer, it is
// never surfaced as an error.
const maxToolIterations = 5

const fallbackNotice = "I could not complete all the lookups needed for a full answer. Please try rephrasing or narrowing the question."

// Compile-time check
var _ AgentUseCase = (*agentUC)(nil)

type AgentUseCase interface {
	// SendMessage resolves one full user turn: admission checks, the tool
	// loop, and the final assistant reply.
	SendMessage(ctx context.Context, userMessage string) (string, error)
	// SendMessageStream resolves the same turn but delivers the final
	// reply as deltas. The assistant message joins history only after the
	// stream is fully drained.
	SendMessageStream(ctx context.Context, userMessage string) (<-chan adapter.StreamChunk, error)
	ClearHistory(ctx context.Context) error
	// Resume swaps in the persisted snapshot of this session, if any.
	Resume(ctx context.Context) error
	Session() *model.ChatSession
}

type agentUC struct {
	provider      adapter.ModelProvider
	dispatcher    *tool.Dispatcher
	catalog       *tool.Catalog
	sessions      repository.ChatSessionRepository // nil means memory-only
	session       *model.ChatSession
	maxTurns      int
	maxCostMicros int64
	log           *zerolog.Logger
}

func NewAgentUseCase(
	sessionID, systemPrompt string,
	provider adapter.ModelProvider,
	dispatcher *tool.Dispatcher,
	catalog *tool.Catalog,
	sessions repository.ChatSessionRepository,
	maxTurns int,
	maxCostMicros int64,
	log *zerolog.Logger,
) *agentUC {
	return &agentUC{
		provider:      provider,
		dispatcher:    dispatcher,
		catalog:       catalog,
		sessions:      sessions,
		session:       model.NewChatSession(sessionID, provider.Model(), systemPrompt),
		maxTurns:      maxTurns,
		maxCostMicros: maxCostMicros,
		log:           log,
	}
}

// Resume replaces the in-memory session with a persisted one, keeping the
// configured ceilings. Without a repository there is nothing to resume
// from, so an unknown session stays unknown.
func (a *agentUC) Resume(ctx context.Context) error {
	if a.sessions == nil {
		return domain.ErrNotFound
	}
	s, err := a.sessions.FindByID(ctx, a.session.ID)
	if err != nil {
		return err
	}
	a.session = s
	return nil
}

func (a *agentUC) Session() *model.ChatSession { return a.session }

func (a *agentUC) ClearHistory(ctx context.Context) error {
	a.session.Reset()
	return a.persist(ctx)
}

func (a *agentUC) SendMessage(ctx context.Context, userMessage string) (string, error) {
	defer logging.TraceDuration(a.log, "AgentUC.SendMessage")()

	resp, iterations, err := a.runToolLoop(ctx, userMessage)
	if err != nil {
		return "", err
	}

	final := a.finalContent(resp)
	a.commitTurn(ctx, final, iterations)
	return final, nil
}

func (a *agentUC) SendMessageStream(ctx context.Context, userMessage string) (<-chan adapter.StreamChunk, error) {
	resp, iterations, err := a.runToolLoop(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	// Replay the buffered reply as a single chunk when the provider cannot
	// stream, or when the loop ceiling was hit with tool calls still
	// outstanding: a fresh completion would see unconverged history.
	if !a.provider.SupportsStreaming() || len(resp.ToolCalls) > 0 {
		final := a.finalContent(resp)
		a.commitTurn(ctx, final, iterations)
		out := make(chan adapter.StreamChunk, 2)
		out <- adapter.StreamChunk{Delta: final}
		out <- adapter.StreamChunk{Done: true}
		close(out)
		return out, nil
	}

	// The tool loop already converged on a tool-free reply; stream a fresh
	// completion over the same history so deltas arrive as generated.
	inner, err := a.provider.StreamChat(ctx, a.adapterMessages(), a.catalog.Specs())
	if err != nil {
		return nil, err
	}

	out := make(chan adapter.StreamChunk)
	go func() {
		defer close(out)
		var sb strings.Builder
		for chunk := range inner {
			if chunk.Err != nil {
				select {
				case out <- chunk:
				case <-ctx.Done():
				}
				return
			}
			sb.WriteString(chunk.Delta)
			if chunk.Delta != "" {
				select {
				case out <- adapter.StreamChunk{Delta: chunk.Delta}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				break
			}
		}
		final := sb.String()
		if final == "" {
			final = a.finalContent(resp)
		}
		// Commit before Done goes out: a consumer that saw Done may hand
		// the session to the next turn immediately.
		a.commitTurn(ctx, final, iterations)
		select {
		case out <- adapter.StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// commitTurn appends the final assistant reply and persists the snapshot.
func (a *agentUC) commitTurn(ctx context.Context, final string, iterations int) {
	a.session.AddMessage(model.RoleAssistant, final)
	metrics.ObserveTurn(iterations)
	if err := a.persist(ctx); err != nil {
		a.log.Warn().Err(err).Str("session_id", a.session.ID).Msg("session persist failed")
	}
}

// runToolLoop performs admission, appends the user message, and drives the
// bounded model->tools->model loop. It returns the last model response and
// how many tool iterations ran.
func (a *agentUC) runToolLoop(ctx context.Context, userMessage string) (adapter.ModelResponse, int, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return adapter.ModelResponse{}, 0, domain.ErrInvalidArgument
	}
	if err := a.admit(userMessage); err != nil {
		return adapter.ModelResponse{}, 0, err
	}

	a.session.AddMessage(model.RoleUser, userMessage)
	a.session.TurnCount++

	specs := a.catalog.Specs()
	resp := a.chat(ctx, specs)
	iterations := 0
	for ; iterations < maxToolIterations && len(resp.ToolCalls) > 0; iterations++ {
		a.recordToolRound(ctx, resp)
		resp = a.chat(ctx, specs)
	}
	return resp, iterations, nil
}

// admit rejects the turn before any state changes, so a blocked turn
// leaves the session exactly as it was.
func (a *agentUC) admit(userMessage string) error {
	if a.session.Status != model.ChatSessionActive {
		return domain.ErrSessionNotActive
	}
	if a.maxTurns > 0 && a.session.TurnCount >= a.maxTurns {
		metrics.AdmissionBlocked("turns")
		return domain.ErrTurnLimitExceeded
	}
	if a.maxCostMicros > 0 {
		pending := append(a.adapterMessages(), adapter.Message{Role: model.RoleUser, Content: userMessage})
		estimate := a.provider.EstimateCostMicros(pending)
		if a.session.TotalCostMicros+estimate > a.maxCostMicros {
			metrics.AdmissionBlocked("cost")
			return fmt.Errorf("%w: spent %d of %d micro-USD", domain.ErrCostLimitExceeded,
				a.session.TotalCostMicros, a.maxCostMicros)
		}
	}
	return nil
}

// chat issues one buffered model call and folds its usage into the
// session's running cost.
func (a *agentUC) chat(ctx context.Context, specs []adapter.Tool) adapter.ModelResponse {
	start := time.Now()
	resp := a.provider.Chat(ctx, a.adapterMessages(), specs)

	var costMicros int64
	usage := adapter.Usage{}
	if resp.Usage != nil {
		usage = *resp.Usage
		costMicros = a.provider.Pricing().CostMicros(usage)
		a.session.TotalCostMicros += costMicros
	}
	metrics.ObserveChatUsage(
		a.provider.Name(), a.provider.Model(),
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		costMicros, int(time.Since(start).Milliseconds()),
		resp.FinishReason != adapter.FinishError,
	)
	return resp
}

// recordToolRound dispatches every requested call in order and appends the
// round to history: one assistant message naming the tools, one system
// message carrying their results.
func (a *agentUC) recordToolRound(ctx context.Context, resp adapter.ModelResponse) {
	names := make([]string, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		names = append(names, call.Name)
	}
	summary := "Invoking tools: " + strings.Join(names, ", ")
	if resp.Content != "" {
		summary = resp.Content + "\n" + summary
	}
	a.session.AddMessage(model.RoleAssistant, summary)

	var results strings.Builder
	results.WriteString("Tool results:")
	for _, call := range resp.ToolCalls {
		result := a.dispatcher.Dispatch(ctx, call)
		fmt.Fprintf(&results, "\n%s => %s", call.Name, result)
	}
	a.session.AddMessage(model.RoleSystem, results.String())
}

func (a *agentUC) finalContent(resp adapter.ModelResponse) string {
	if content := strings.TrimSpace(resp.Content); content != "" {
		return content
	}
	return fallbackNotice
}

func (a *agentUC) adapterMessages() []adapter.Message {
	msgs := make([]adapter.Message, 0, len(a.session.Messages))
	for _, m := range a.session.Messages {
		msgs = append(msgs, adapter.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func (a *agentUC) persist(ctx context.Context) error {
	if a.sessions == nil {
		return nil
	}
	a.session.UpdatedAt = time.Now()
	return a.sessions.Save(ctx, a.session)
}
