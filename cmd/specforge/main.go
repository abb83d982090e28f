// SpecForge server — exposes the HTTP API, runs the four-stage document
// workflow, and drives the background export worker.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/specforge/specforge/pkg/agent"
	"github.com/specforge/specforge/pkg/api"
	"github.com/specforge/specforge/pkg/auth"
	"github.com/specforge/specforge/pkg/config"
	"github.com/specforge/specforge/pkg/database"
	"github.com/specforge/specforge/pkg/events"
	"github.com/specforge/specforge/pkg/export"
	"github.com/specforge/specforge/pkg/kv"
	"github.com/specforge/specforge/pkg/llm"
	"github.com/specforge/specforge/pkg/llm/breaker"
	"github.com/specforge/specforge/pkg/llm/providers"
	"github.com/specforge/specforge/pkg/orchestrator"
	"github.com/specforge/specforge/pkg/quality"
	"github.com/specforge/specforge/pkg/ratelimit"
	"github.com/specforge/specforge/pkg/repository"
	"github.com/specforge/specforge/pkg/services"
	"github.com/specforge/specforge/pkg/vector"
	"github.com/specforge/specforge/pkg/workflow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 1. Configuration, with broker-resolved secrets when available.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Vault.Addr != "" {
		broker, err := config.NewVaultBroker(cfg.Vault)
		if err != nil {
			slog.Warn("Secrets broker unavailable, using environment values", "error", err)
		} else {
			cfg.ResolveSecrets(ctx, broker)
		}
	} else if cfg.Vault.UseVault && cfg.Environment == config.EnvProduction {
		slog.Warn("USE_VAULT is set but no broker address configured; running degraded")
	}

	slog.Info("Starting SpecForge",
		"environment", cfg.Environment,
		"http_port", cfg.HTTPPort,
		"providers", len(cfg.LLMProviders))

	// 2. Relational store (runs embedded migrations).
	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL")

	// 3. Key/value store. Startup proceeds if it is down: rate limiting
	// fails open and the blacklist fails closed by design.
	kvStore := kv.NewStore(cfg.Redis)
	defer func() {
		if err := kvStore.Close(); err != nil {
			slog.Error("Error closing KV store", "error", err)
		}
	}()
	if err := kvStore.Ping(ctx); err != nil {
		slog.Warn("KV store unreachable at startup", "error", err)
	}

	// 4. Repositories and auth primitives.
	repos := repository.New(dbClient.DBX())
	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)
	if err != nil {
		slog.Error("Failed to create token manager", "error", err)
		os.Exit(1)
	}
	blacklist := auth.NewBlacklist(kvStore)
	limiter := ratelimit.New(kvStore, ratelimit.Policy{
		Limit:  cfg.RateLimitRequests,
		Window: cfg.RateLimitWindow,
	})

	// 5. Vector memory over pgvector.
	vectorStore := vector.NewStore(dbClient.DBX())
	if err := vectorStore.EnsureCollection(ctx); err != nil {
		slog.Error("Failed to prepare vector collection", "error", err)
		os.Exit(1)
	}
	embedder := vector.NewOpenAIEmbedder(
		cfg.LLMProviders["openai"].APIKey,
		cfg.LLMProviders["openai"].BaseURL,
		"text-embedding-3-small",
	)
	memory := vector.NewMemory(vectorStore, embedder, "en")

	// 6. LLM manager with per-provider circuit breakers. Providers whose
	// credentials are missing were never loaded into the config.
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	manager := llm.NewManager(cfg.DefaultProvider, logger)
	var providerNames []string
	for name, pc := range cfg.LLMProviders {
		var p llm.Provider
		switch name {
		case "openai":
			p = providers.NewOpenAI(pc.APIKey, pc.DefaultModel)
		case "anthropic":
			p = providers.NewAnthropic(pc.APIKey, pc.DefaultModel)
		default:
			slog.Warn("Skipping unknown LLM provider", "provider", name)
			continue
		}
		manager.Register(llm.NewClient(p, pc.BaseURL, breakers.Get(name), llm.DefaultRetryConfig(), logger))
		providerNames = append(providerNames, name)
	}
	if len(providerNames) == 0 {
		slog.Warn("No LLM providers configured; stage execution will fail until one is added")
	}

	// 7. Quality control, agent executor, orchestrator, workflow engine.
	controller := quality.NewController(logger)
	executor := agent.NewExecutor(manager, memory, controller, agent.Config{
		Timeout:      cfg.Workflow.AgentTimeout,
		ContextLimit: cfg.Workflow.ContextLimit,
	}, logger)

	publisher := events.NewPublisher(kvStore, logger)
	hub := events.NewHub(kvStore, logger)

	orch := orchestrator.New(executor, repos.Documents, repos.Executions, memory, publisher, logger)
	engine := workflow.New(orch, repos.Documents, repos.Projects, publisher, workflow.Config{
		StagePause:             cfg.Workflow.StagePause,
		DefaultTechnologyStack: splitStack(cfg.Workflow.DefaultTechnologyStack),
	}, logger)

	// 8. Services and the export worker.
	authService := services.NewAuthService(repos, tokens, blacklist, logger)
	projectService := services.NewProjectService(repos, logger)
	exportService := export.NewService(repos.Exports, repos.Documents, cfg.ExportDir, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	exportWorker := export.NewWorker(exportService)
	go exportWorker.Run(workerCtx)

	// 9. HTTP server.
	httpServer := api.NewServer(api.Deps{
		Config:    cfg,
		Auth:      authService,
		Projects:  projectService,
		Engine:    engine,
		Exports:   exportService,
		Events:    hub,
		Tokens:    tokens,
		Blacklist: blacklist,
		Limiter:   limiter,
		DB:        dbClient,
		KV:        kvStore,
		Breakers:  breakers,
		Providers: providerNames,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("SpecForge started successfully")

	// 10. Wait for shutdown signal or server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: stop taking requests, then stop the worker.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	stopWorker()

	slog.Info("Shutdown complete")
}

// splitStack turns the comma-separated configured stack into a list.
func splitStack(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
