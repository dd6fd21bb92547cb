// Command research-server runs the plan-and-execute research orchestrator:
// it wires configuration, the session store, the tool adapters, the
// orchestrator state machine, the run scheduler, the event bus, and the
// HTTP/WebSocket API, then serves until terminated.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-research/deepresearch/pkg/api"
	"github.com/go-research/deepresearch/pkg/cache"
	"github.com/go-research/deepresearch/pkg/config"
	"github.com/go-research/deepresearch/pkg/external"
	"github.com/go-research/deepresearch/pkg/logger"
	"github.com/go-research/deepresearch/pkg/orchestrator"
	"github.com/go-research/deepresearch/pkg/plan"
	"github.com/go-research/deepresearch/pkg/scheduler"
	"github.com/go-research/deepresearch/pkg/session"
	"github.com/go-research/deepresearch/pkg/stream"
	"github.com/go-research/deepresearch/pkg/telemetry"
	"github.com/go-research/deepresearch/pkg/tools"
)

// version is stamped at build time via -ldflags; defaults to "dev" otherwise.
var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(os.Getenv("RESEARCH_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("research-server: loading configuration: %v", err)
	}

	appLogger := logger.NewSimpleLogger()
	appLogger.SetLevel("INFO")

	shutdownTracing, err := telemetry.InitTracer("research-server", version)
	if err != nil {
		appLogger.Warn("tracing disabled: failed to initialize exporter", "error", err)
	}

	llm, err := newLLMProvider(appLogger)
	if err != nil {
		log.Fatalf("research-server: %v", err)
	}
	search := newSearchProvider(appLogger)
	reranker := newReranker()
	executor := newCodeExecutor()

	var queryCache tools.QueryCache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL, appLogger)
		if err != nil {
			appLogger.Warn("redis cache unavailable, falling back to in-memory", "error", err)
			queryCache = cache.NewMemoryCache(1000, 5*time.Minute)
		} else {
			queryCache = rc
		}
	} else {
		queryCache = cache.NewMemoryCache(1000, 5*time.Minute)
	}

	store := session.NewStore(cfg.SessionIdleTTL(), cfg.SessionSweepInterval())
	defer store.Stop()

	bus := stream.NewBus(cfg.HeartbeatInterval(), appLogger)
	defer bus.Stop()

	adapters := map[plan.Tool]tools.Adapter{
		plan.ToolSearch: &tools.SearchAdapter{
			LLM: llm, Search: search, Rerank: reranker,
			MaxSources: cfg.MaxSourcesPerSearch, Cache: queryCache,
		},
		plan.ToolCode: &tools.CodeAdapter{LLM: llm, Executor: executor},
		plan.ToolLLM:  &tools.LLMAdapter{LLM: llm},
	}

	orch := &orchestrator.Orchestrator{
		Config:   cfg,
		Store:    store,
		Bus:      bus,
		LLM:      llm,
		Adapters: adapters,
		Logger:   appLogger,
		Tracing:  telemetry.NewOrchestratorTracing(),
	}

	sched := scheduler.New(cfg, store, bus, orch, appLogger)

	wsHandler := stream.NewWebSocketHandler(bus, cfg.CORSOrigins, appLogger)
	server := api.New(cfg, store, bus, sched, appLogger, version)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: server.Handler(wsHandler),
	}

	go func() {
		appLogger.Info("research-server listening", "addr", httpServer.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("research-server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http server shutdown error", "error", err)
	}
	sched.NewChat()
	sched.Wait()
	if shutdownTracing != nil {
		_ = shutdownTracing(shutdownCtx)
	}

	appLogger.Info("shutdown complete")
}

func newLLMProvider(log logger.Logger) (external.LLMProvider, error) {
	return external.NewConfiguredLLM(log)
}

func newSearchProvider(log logger.Logger) external.SearchProvider {
	return external.NewConfiguredSearch(log)
}

func newReranker() external.Reranker {
	return external.NewPassthroughReranker()
}

func newCodeExecutor() external.CodeExecutor {
	return external.NewConfiguredCodeExecutor()
}
