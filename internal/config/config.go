// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port      int           `yaml:"port"`
	APIKey    string        `yaml:"api_key"`    // exchanged for a bearer token
	JWTSecret string        `yaml:"jwt_secret"` // HS256 signing secret
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AgentConfig bounds every session: the turn ceiling and the estimated
// monetary cost ceiling are hard limits surfaced to the user, not clamps.
type AgentConfig struct {
	MaxTurns     int     `yaml:"max_turns"`
	MaxCostUSD   float64 `yaml:"max_cost_usd"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// MaxCostMicros converts the configured USD ceiling to micro-USD, the unit
// used for all cost accounting.
func (a AgentConfig) MaxCostMicros() int64 {
	return int64(a.MaxCostUSD * 1_000_000)
}

// ProviderConfig configures one model backend, including its real pricing
// (micro-USD per 1K tokens) used for both the admission estimate and
// post-call accounting.
type ProviderConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	InputMicrosPer1K  int64  `yaml:"input_micros_per_1k"`
	OutputMicrosPer1K int64  `yaml:"output_micros_per_1k"`
}

type AIConfig struct {
	Default         string         `yaml:"default"` // openai|gemini|compat
	ConcurrentLimit int            `yaml:"concurrent_limit"`
	OpenAI          ProviderConfig `yaml:"openai"`
	Gemini          ProviderConfig `yaml:"gemini"`
	Compat          ProviderConfig `yaml:"compat"`
}

type ToolsConfig struct {
	EthRPCURL       string        `yaml:"eth_rpc_url"`
	PriceAPIBase    string        `yaml:"price_api_base"`
	ProtocolAPIBase string        `yaml:"protocol_api_base"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
}

type SecurityConfig struct {
	// EncryptionKey enables message encryption at rest when set. Must be
	// 16, 24, or 32 bytes.
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Agent    AgentConfig    `yaml:"agent"`
	AI       AIConfig       `yaml:"ai"`
	Tools    ToolsConfig    `yaml:"tools"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

const defaultSystemPrompt = "You are an onchain assistant. You can look up wallet balances, token prices, " +
	"transactions, and DeFi protocol data with the available tools. Answer concisely and cite the numbers you fetched."

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TokenTTL <= 0 {
		cfg.Server.TokenTTL = 30 * time.Minute
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.Agent.MaxTurns <= 0 {
		cfg.Agent.MaxTurns = 20
	}
	if cfg.Agent.MaxCostUSD <= 0 {
		cfg.Agent.MaxCostUSD = 1.0
	}
	if strings.TrimSpace(cfg.Agent.SystemPrompt) == "" {
		cfg.Agent.SystemPrompt = defaultSystemPrompt
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Default == "" {
		switch {
		case cfg.AI.OpenAI.APIKey != "":
			cfg.AI.Default = "openai"
		case cfg.AI.Gemini.APIKey != "":
			cfg.AI.Default = "gemini"
		case cfg.AI.Compat.APIKey != "":
			cfg.AI.Default = "compat"
		}
	}
	if cfg.Tools.PriceAPIBase == "" {
		cfg.Tools.PriceAPIBase = "https://api.coingecko.com/api/v3"
	}
	if cfg.Tools.ProtocolAPIBase == "" {
		cfg.Tools.ProtocolAPIBase = "https://api.llama.fi"
	}
	if cfg.Tools.HTTPTimeout <= 0 {
		cfg.Tools.HTTPTimeout = 15 * time.Second
	}
}
