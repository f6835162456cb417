// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onchain-ai-assistant/internal/config"
	"onchain-ai-assistant/internal/domain/ports/adapter"
	"onchain-ai-assistant/internal/domain/ports/repository"
	aiAdapters "onchain-ai-assistant/internal/infra/adapters/ai"
	toolAdapters "onchain-ai-assistant/internal/infra/adapters/tools"
	pg "onchain-ai-assistant/internal/infra/db/postgres"
	"onchain-ai-assistant/internal/infra/logging"
	"onchain-ai-assistant/internal/infra/metrics"
	red "onchain-ai-assistant/internal/infra/redis"
	"onchain-ai-assistant/internal/infra/security"
	"onchain-ai-assistant/internal/infra/web"
	"onchain-ai-assistant/internal/tool"
	"onchain-ai-assistant/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop provider fallback, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres (optional) ----
	var sessionRepo repository.ChatSessionRepository
	var purge func(ctx context.Context, id string) error
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()

		// ---- Redis cache (optional) ----
		var chatCache *red.ChatCache
		if cfg.Redis.URL != "" {
			redisClient, err := red.NewClient(ctx, &cfg.Redis)
			if err != nil {
				log.Fatalf("redis: %v", err)
			}
			defer redisClient.Close()
			chatCache = red.NewChatCache(redisClient, cfg.Redis.TTL)
		}

		var encSvc *security.EncryptionService
		if cfg.Security.EncryptionKey != "" {
			encSvc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
			if err != nil {
				log.Fatalf("encryption: %v", err)
			}
		}

		repo := pg.NewChatSessionRepo(pool, chatCache, encSvc)
		sessionRepo = repo
		purge = repo.Delete
	} else {
		logger.Warn().Msg("no database configured; sessions are memory-only")
	}

	// ---- Chain RPC (optional) ----
	var chain toolAdapters.ChainReader
	if cfg.Tools.EthRPCURL != "" {
		client, err := toolAdapters.DialChain(ctx, cfg.Tools.EthRPCURL)
		if err != nil {
			log.Fatalf("eth rpc: %v", err)
		}
		defer client.Close()
		chain = client
	} else {
		logger.Warn().Msg("no eth rpc configured; wallet and transaction tools will report unavailability")
	}

	// ---- Tool catalog ----
	catalog := tool.NewCatalog()
	if err := toolAdapters.RegisterAll(catalog, toolAdapters.Deps{
		Chain:        chain,
		PriceBase:    cfg.Tools.PriceAPIBase,
		ProtocolBase: cfg.Tools.ProtocolAPIBase,
		HTTPClient:   &http.Client{Timeout: cfg.Tools.HTTPTimeout},
		Log:          logger,
	}); err != nil {
		log.Fatalf("tools: %v", err)
	}
	dispatcher := tool.NewDispatcher(catalog, logger)

	// ---- Providers ----
	registry := aiAdapters.NewRegistry(cfg.AI.Default)
	if cfg.AI.OpenAI.APIKey != "" {
		p, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAI.APIKey, cfg.AI.OpenAI.Model, pricing(cfg.AI.OpenAI))
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		registry.Add(aiAdapters.NewLimitedProvider(p, cfg.AI.ConcurrentLimit))
	}
	if cfg.AI.Gemini.APIKey != "" {
		p, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.Gemini.APIKey, cfg.AI.Gemini.BaseURL, cfg.AI.Gemini.Model, pricing(cfg.AI.Gemini))
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		registry.Add(aiAdapters.NewLimitedProvider(p, cfg.AI.ConcurrentLimit))
	}
	if cfg.AI.Compat.APIKey != "" {
		p, err := aiAdapters.NewCompatAdapter(cfg.AI.Compat.APIKey, cfg.AI.Compat.BaseURL, cfg.AI.Compat.Model, pricing(cfg.AI.Compat))
		if err != nil {
			log.Fatalf("compat adapter: %v", err)
		}
		registry.Add(aiAdapters.NewLimitedProvider(p, cfg.AI.ConcurrentLimit))
	}
	if len(registry.Names()) == 0 {
		if !cfg.Runtime.Dev {
			log.Fatalf("no AI provider configured: set ai.openai.api_key, ai.gemini.api_key or ai.compat.api_key in %s", *cfgPath)
		}
		logger.Warn().Msg("no AI provider configured; using noop echo provider")
		registry.Add(aiAdapters.NewNoopProvider())
	}
	logger.Info().Strs("providers", registry.Names()).Msg("providers registered")

	// ---- Sessions + web ----
	factory := func(sessionID, providerName string) (usecase.AgentUseCase, error) {
		provider, err := registry.Resolve(providerName)
		if err != nil {
			return nil, err
		}
		return usecase.NewAgentUseCase(
			sessionID, cfg.Agent.SystemPrompt,
			provider, dispatcher, catalog, sessionRepo,
			cfg.Agent.MaxTurns, cfg.Agent.MaxCostMicros(),
			logging.ForSession(logger, sessionID),
		), nil
	}
	manager := web.NewSessionManager(factory, purge)
	auth := web.NewAuthManager(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	server := web.NewServer(cfg.Server.Port, manager, auth, cfg.Server.APIKey, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
}

func pricing(p config.ProviderConfig) adapter.Pricing {
	return adapter.Pricing{
		InputMicrosPer1K:  p.InputMicrosPer1K,
		OutputMicrosPer1K: p.OutputMicrosPer1K,
	}
}
