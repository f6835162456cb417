package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/infra/metrics"
)

// Dispatcher maps tool-call requests onto registered handlers and truncates
// oversized results before they re-enter conversation history. Tool
// failures are data, not control flow: Dispatch always returns a
// structured-data string and never panics past a handler.
type Dispatcher struct {
	catalog *Catalog
	log     *zerolog.Logger
}

func NewDispatcher(catalog *Catalog, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{catalog: catalog, log: logger}
}

// Dispatch executes one tool call and returns its bounded result payload.
func (d *Dispatcher) Dispatch(ctx context.Context, call adapter.ToolCall) string {
	reg, ok := d.catalog.Lookup(call.Name)
	if !ok {
		metrics.ObserveToolDispatch(call.Name, "unknown")
		return errorPayload("Unknown tool: " + call.Name)
	}

	raw, err := d.run(ctx, reg, call)
	if err != nil {
		metrics.ObserveToolDispatch(call.Name, "error")
		if d.log != nil {
			d.log.Warn().Str("tool", call.Name).Err(err).Msg("tool execution failed")
		}
		return errorPayload("Tool execution failed: " + err.Error())
	}

	out := Truncate(raw)
	if out != raw {
		metrics.ObserveToolTruncation(call.Name)
	}
	metrics.ObserveToolDispatch(call.Name, "ok")
	return out
}

// run shields the loop from a panicking handler; a panic is just another
// handler failure.
func (d *Dispatcher) run(ctx context.Context, reg Registration, call adapter.ToolCall) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return reg.Handler(ctx, call.Arguments)
}

func errorPayload(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"tool dispatch failed"}`
	}
	return string(b)
}
