package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smilemakc/agentflow/internal/agent"
	"github.com/smilemakc/agentflow/internal/approval"
	"github.com/smilemakc/agentflow/internal/bus"
	"github.com/smilemakc/agentflow/internal/config"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/engine"
	"github.com/smilemakc/agentflow/internal/evolution"
	"github.com/smilemakc/agentflow/internal/infrastructure/api/rest"
	"github.com/smilemakc/agentflow/internal/infrastructure/logger"
	"github.com/smilemakc/agentflow/internal/infrastructure/monitoring"
	"github.com/smilemakc/agentflow/internal/infrastructure/storage"
	"github.com/smilemakc/agentflow/internal/infrastructure/websocket"
	"github.com/smilemakc/agentflow/internal/node"
	"github.com/smilemakc/agentflow/internal/node/executors"
	"github.com/smilemakc/agentflow/internal/resilience"
	"github.com/smilemakc/agentflow/internal/schema"
	"github.com/smilemakc/agentflow/internal/trigger"
)

func main() {
	var (
		port     = flag.String("port", "", "Server port (overrides config)")
		memStore = flag.Bool("memory-store", false, "Use the in-memory store instead of Postgres")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.Setup(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Msg("starting agentflow server")

	var store domain.Storage
	if *memStore {
		store = storage.NewMemoryStore()
		log.Info().Msg("using in-memory store")
	} else {
		bunStore := storage.NewBunStore(cfg.DatabaseDSN)
		ctx := context.Background()
		if err := bunStore.InitSchema(ctx); err != nil {
			log.Error().Err(err).Msg("failed to initialize database schema")
			os.Exit(1)
		}
		store = bunStore
		log.Info().Msg("using BunStore (PostgreSQL)")
	}

	// Node executor registry: one Executor per built-in node type,
	// agent/code nodes wrapped with circuit-breaker/retry resilience.
	registry := node.NewRegistry()
	breakers := resilience.NewRegistry(resilience.DefaultCircuitBreakerConfig())
	executors.RegisterResilient(registry, breakers)

	// Event bus & journal.
	eventBus := bus.New()

	// Approval coordinator, shared by approval nodes and
	// "suggest"-mode evolutions.
	approver := approval.NewCoordinator()

	// Schema registry, the single source of truth the evolution
	// validator reads from.
	schemaRegistry := schema.MustDefaultRegistry()

	// Evolution coordinator : validates and applies self-reflect
	// mutations, persisting the resulting workflow back through storage.
	evolver := evolution.NewCoordinator(schemaRegistry, approver, store.SaveWorkflow)

	// Scheduler.
	eng := engine.New(registry, eventBus)
	eng.Config.DefaultNodeTimeout = cfg.NodeTimeout
	eng.Config.MaxNodeReentries = cfg.MaxNodeReentries
	eng.Approver = approver
	eng.Evolver = evolver

	// Agent adapters: wired only when their API key is configured, so
	// a deployment without, say, a Codex key still runs claude-only
	// workflows (and self-reflect, which needs at least one).
	if cfg.ClaudeAPIKey != "" {
		client := openai.NewClient(cfg.ClaudeAPIKey)
		eng.Agents[domain.NodeTypeClaudeAgent] = agent.NewClaudeAdapter(client)
		eng.Agents[domain.NodeTypeSelfReflect] = agent.NewClaudeAdapter(client)
		log.Info().Msg("claude agent adapter enabled")
	}
	if cfg.CodexAPIKey != "" {
		client := openai.NewClient(cfg.CodexAPIKey)
		eng.Agents[domain.NodeTypeCodexAgent] = agent.NewCodexAdapter(client)
		if _, ok := eng.Agents[domain.NodeTypeSelfReflect]; !ok {
			eng.Agents[domain.NodeTypeSelfReflect] = agent.NewCodexAdapter(client)
		}
		log.Info().Msg("codex agent adapter enabled")
	}

	// WebSocket transport: hub broadcasts workflow-level pushes, each
	// Client owns its own direct bus subscription for execution events.
	hub := websocket.NewHub(log)
	go hub.Run()

	// Execution metrics: a ConsoleObserver is attached per execution
	// (websocket.Server.StartExecution) so Snapshot() reflects real runs.
	metrics := monitoring.NewMetricsCollector()

	wsServer := websocket.NewServer(eng, store, eventBus, approver, evolver, hub, log)
	wsServer.Metrics = metrics
	wsServer.WebhookURL = cfg.WebhookCallbackURL
	wsHandler := websocket.NewHandler(hub, wsServer, websocket.NewNoAuth(), log)

	// Scheduled triggers: cron-configured workflows start the same way a
	// start-execution message does.
	cronScheduler := trigger.NewCronScheduler(store, wsServer)
	if err := cronScheduler.Start(context.Background()); err != nil {
		log.Warn().Err(err).Msg("failed to start cron scheduler")
	}
	defer cronScheduler.Stop()

	// REST surface: workflow CRUD/duplication plus read-only
	// execution/event listing.
	restServer := rest.NewServer(store, log).WithStarter(wsServer).WithMetrics(metrics)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/api/", restServer)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server exited gracefully")
}
