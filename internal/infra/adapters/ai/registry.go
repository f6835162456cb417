// File: internal/infra/adapters/ai/registry.go
package ai

import (
	"fmt"
	"sort"
	"strings"

	"onchain-ai-assistant/internal/domain/ports/adapter"
)

// Registry holds the configured providers keyed by name. Sessions pick a
// provider at creation time and keep it for their whole lifetime.
type Registry struct {
	defaultName string
	byName      map[string]adapter.ModelProvider
}

func NewRegistry(defaultName string) *Registry {
	return &Registry{
		defaultName: strings.ToLower(defaultName),
		byName:      make(map[string]adapter.ModelProvider),
	}
}

func (r *Registry) Add(p adapter.ModelProvider) {
	r.byName[strings.ToLower(p.Name())] = p
}

// Resolve returns the provider for name, or the default when name is
// empty. An unknown name is an error rather than a silent fallback; only
// a missing default with exactly one registered provider falls through.
func (r *Registry) Resolve(name string) (adapter.ModelProvider, error) {
	key := strings.ToLower(name)
	if key == "" {
		key = r.defaultName
	}
	if p, ok := r.byName[key]; ok {
		return p, nil
	}
	if key == "" && len(r.byName) == 1 {
		for _, p := range r.byName {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

func (r *Registry) Default() (adapter.ModelProvider, error) {
	return r.Resolve("")
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
