// Package registry holds the static token and protocol registries shared by
// the domain tools. Both are embedded at build time and read-only after
// process start.
package registry

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tokens.yaml
var tokensYAML []byte

//go:embed protocols.yaml
var protocolsYAML []byte

// Token describes one entry of the static token registry.
type Token struct {
	Symbol      string `yaml:"symbol"`
	Name        string `yaml:"name"`
	CoingeckoID string `yaml:"coingecko_id"`
	Address     string `yaml:"address"`
	Decimals    int    `yaml:"decimals"`
}

// Protocol describes one entry of the static protocol registry.
type Protocol struct {
	Name     string   `yaml:"name"`
	Slug     string   `yaml:"slug"`
	Category string   `yaml:"category"`
	Chains   []string `yaml:"chains"`
}

var (
	once      sync.Once
	loadErr   error
	tokens    []Token
	protocols []Protocol
	tokenIdx  map[string]Token
	protoIdx  map[string]Protocol
)

func load() {
	var tdoc struct {
		Tokens []Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(tokensYAML, &tdoc); err != nil {
		loadErr = fmt.Errorf("parse token registry: %w", err)
		return
	}
	var pdoc struct {
		Protocols []Protocol `yaml:"protocols"`
	}
	if err := yaml.Unmarshal(protocolsYAML, &pdoc); err != nil {
		loadErr = fmt.Errorf("parse protocol registry: %w", err)
		return
	}

	tokens = tdoc.Tokens
	protocols = pdoc.Protocols
	tokenIdx = make(map[string]Token, len(tokens))
	for _, t := range tokens {
		tokenIdx[strings.ToLower(t.Symbol)] = t
	}
	protoIdx = make(map[string]Protocol, len(protocols))
	for _, p := range protocols {
		protoIdx[strings.ToLower(p.Name)] = p
		protoIdx[strings.ToLower(p.Slug)] = p
	}
}

// LookupToken resolves a token symbol, case-insensitively.
func LookupToken(symbol string) (Token, bool) {
	once.Do(load)
	if loadErr != nil {
		return Token{}, false
	}
	t, ok := tokenIdx[strings.ToLower(strings.TrimSpace(symbol))]
	return t, ok
}

// LookupProtocol resolves a protocol by display name or slug,
// case-insensitively.
func LookupProtocol(name string) (Protocol, bool) {
	once.Do(load)
	if loadErr != nil {
		return Protocol{}, false
	}
	p, ok := protoIdx[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Tokens returns the registry entries in file order.
func Tokens() []Token {
	once.Do(load)
	return tokens
}

// Protocols returns the registry entries in file order.
func Protocols() []Protocol {
	once.Do(load)
	return protocols
}
