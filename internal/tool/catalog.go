package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

// Handler executes one declared tool. Expected failures (invalid input,
// upstream API errors) should already be encoded as a structured
// {"error": "..."} payload by the collaborator; a returned error is still
// converted to structured data by the dispatcher, never re-raised.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Registration pairs a tool descriptor with the function that performs it.
type Registration struct {
	Spec    adapter.Tool
	Handler Handler
}

// Catalog is a name->handler registration table built once at startup.
// Adding a tool is a data change: one Register call, no per-provider
// duplication.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]Registration
	order  []string
}

func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]Registration)}
}

// Register adds a tool under a lower-cased key. Duplicate names return an error.
func (c *Catalog) Register(spec adapter.Tool, h Handler) error {
	key := strings.ToLower(strings.TrimSpace(spec.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}
	if h == nil {
		return fmt.Errorf("tool %s has no handler", spec.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[key]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	c.byName[key] = Registration{Spec: spec, Handler: h}
	c.order = append(c.order, key)
	return nil
}

// Specs returns the tool descriptors in registration order. The same slice
// contents are handed to every provider adapter for translation.
func (c *Catalog) Specs() []adapter.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	specs := make([]adapter.Tool, 0, len(c.order))
	for _, key := range c.order {
		specs = append(specs, c.byName[key].Spec)
	}
	return specs
}

// Lookup returns the registration for a tool name if present.
func (c *Catalog) Lookup(name string) (Registration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	reg, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return reg, ok
}
