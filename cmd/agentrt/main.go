// agentrt is the orchestration runtime daemon: HTTP/WebSocket API,
// FSM-driven orchestrator, plan execution engine, and the unified
// human-approval subsystem, backed by Postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/agentrt/pkg/agent"
	"github.com/codeready-toolchain/agentrt/pkg/api"
	"github.com/codeready-toolchain/agentrt/pkg/approval"
	"github.com/codeready-toolchain/agentrt/pkg/config"
	"github.com/codeready-toolchain/agentrt/pkg/database"
	"github.com/codeready-toolchain/agentrt/pkg/events"
	"github.com/codeready-toolchain/agentrt/pkg/execution"
	"github.com/codeready-toolchain/agentrt/pkg/facade"
	"github.com/codeready-toolchain/agentrt/pkg/fsm"
	"github.com/codeready-toolchain/agentrt/pkg/llmclient"
	"github.com/codeready-toolchain/agentrt/pkg/llmturn"
	"github.com/codeready-toolchain/agentrt/pkg/locks"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/observability"
	"github.com/codeready-toolchain/agentrt/pkg/repositories"
	"github.com/codeready-toolchain/agentrt/pkg/retention"
	"github.com/codeready-toolchain/agentrt/pkg/tools"
	"github.com/codeready-toolchain/agentrt/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// agentRouterAdapter bridges *agent.Router to pkg/execution.AgentRouter:
// both declare an identically-shaped Agent method, but against distinct
// locally-owned interface types, so a thin wrapper is needed (DESIGN.md
// "Wiring-time adapters").
type agentRouterAdapter struct{ r *agent.Router }

func (a agentRouterAdapter) Agent(name string) (execution.Agent, error) {
	return a.r.Agent(name)
}

// approvalEvaluatorAdapter projects approval.Manager.Evaluate's
// (Decision, *ApprovalRequest, error) onto the (bool, string, error)
// shape every caller-side interface (llmturn.ApprovalDecider,
// agent.ApprovalEvaluator) declares.
type approvalEvaluatorAdapter struct{ m *approval.Manager }

func (a approvalEvaluatorAdapter) Evaluate(ctx context.Context, sessionID string, requestType models.RequestType, subject string, details map[string]any) (bool, string, error) {
	decision, req, err := a.m.Evaluate(ctx, sessionID, requestType, subject, details)
	if err != nil {
		return false, "", err
	}
	if req == nil {
		return decision.RequiresApproval, "", nil
	}
	return decision.RequiresApproval, req.RequestID, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpAddr := getEnv("HTTP_ADDR", ":8080")

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	stats := cfg.Stats()
	slog.Info("starting agentrt", "version", version.Full(), "config_dir", *configDir, "agents", stats.Agents, "approval_rules", stats.Rules, "multi_agent_mode", cfg.MultiAgentMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("loading database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("closing database client", "error", err)
		}
	}()
	slog.Info("connected to database", "host", dbConfig.Host, "database", dbConfig.Database)

	obsConfig := &observability.Config{
		Tracing: observability.TracingConfig{Enabled: getEnv("TRACING_ENABLED", "false") == "true", Endpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"), ServiceName: version.AppName},
		Metrics: observability.MetricsConfig{Enabled: getEnv("METRICS_ENABLED", "true") == "true", Endpoint: "/metrics", Namespace: version.AppName},
	}
	obsManager, err := observability.NewManager(ctx, obsConfig)
	if err != nil {
		log.Fatalf("initializing observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obsManager.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutting down observability", "error", err)
		}
	}()

	// Repositories.
	conversations := repositories.NewConversationRepo(dbClient.Client)
	agentContexts := repositories.NewAgentContextRepo(dbClient.Client)
	approvals := repositories.NewApprovalRepo(dbClient.Client)
	fsmStates := repositories.NewFSMStateRepo(dbClient.Client)
	plans := repositories.NewPlanRepo(dbClient.Client)

	// Event fan-out: Postgres LISTEN/NOTIFY bus plus the in-process
	// WebSocket connection manager it feeds.
	bus := events.NewBus(dbClient.DB())
	connManager := events.NewConnectionManager(bus, 10*time.Second)
	listener := events.NewNotifyListener(dbConfig.ConnString(), connManager)
	connManager.SetListener(listener)
	if err := listener.Start(ctx); err != nil {
		log.Fatalf("starting notify listener: %v", err)
	}
	defer listener.Stop(context.Background())

	// Retention job: stale conversations and event rows past their TTL.
	retentionSvc := retention.NewService(cfg.Retention, conversations, bus)
	retentionSvc.Start(ctx)
	defer retentionSvc.Stop()

	// FSM.
	fsmOrchestrator := fsm.NewOrchestrator(fsmStates)

	// Tool registry and LLM provider client.
	toolRegistry, err := tools.NewRegistry()
	if err != nil {
		log.Fatalf("building tool registry: %v", err)
	}
	httpDoer := llmclient.NewRetryingDoer(&http.Client{Timeout: cfg.Defaults.IterationTimeout}, 3, 500*time.Millisecond, 5*time.Second)
	llmClient := llmclient.New(httpDoer, cfg.LLMProxyURL, cfg.InternalAPIKey)
	model := cfg.Defaults.LLMProvider

	// Approval subsystem: policy, manager, sweeper.
	policy, err := approval.NewPolicy(cfg.ApprovalPolicy)
	if err != nil {
		log.Fatalf("building approval policy: %v", err)
	}
	approvalManager := approval.NewManager(approvals, bus, policy)
	approvalAdapter := approvalEvaluatorAdapter{m: approvalManager}
	sweeper := approval.NewSweeper(approvalManager, approvals, cfg.ApprovalPolicy.Timeout, cfg.ApprovalPolicy.SweepInterval).WithEvents(bus)
	go sweeper.Run(ctx)

	// Agent registry: classifier, architect, specialists (or a single
	// universal agent in single-agent mode).
	classifier := agent.NewClassifier(llmClient, model)
	architect := agent.NewArchitect(plans, llmClient, model)
	turnHandler := llmturn.NewHandler(llmClient, conversations, approvalAdapter, bus, model)

	var router *agent.Router
	var singleAgentMode bool
	if cfg.MultiAgentMode {
		coderAgent, err := agent.NewCoderAgent(conversations, conversations, turnHandler, toolRegistry)
		if err != nil {
			log.Fatalf("building coder agent: %v", err)
		}
		debugAgent, err := agent.NewDebugAgent(conversations, conversations, turnHandler, toolRegistry)
		if err != nil {
			log.Fatalf("building debug agent: %v", err)
		}
		askAgent, err := agent.NewAskAgent(conversations, conversations, turnHandler, toolRegistry)
		if err != nil {
			log.Fatalf("building ask agent: %v", err)
		}
		router = agent.NewRouter(coderAgent, debugAgent, askAgent)
	} else {
		singleAgentMode = true
		universalAgent, err := agent.NewUniversalAgent(conversations, conversations, turnHandler, toolRegistry)
		if err != nil {
			log.Fatalf("building universal agent: %v", err)
		}
		router = agent.NewSingleAgentRouter(universalAgent)
	}

	orchestratorAgent := agent.NewOrchestratorAgent(fsmOrchestrator, classifier, architect, approvalAdapter, singleAgentMode)

	// Plan execution.
	lockRegistry := locks.NewRegistry(cfg.LockRegistry.MaxLocks)
	subtaskExecutor := execution.NewSubtaskExecutor(plans, conversations, agentRouterAdapter{r: router}, bus)
	planService := execution.NewPlanService(plans, subtaskExecutor, bus, cfg.Defaults.ConcurrentLevels)

	fac := facade.NewFacade(lockRegistry, conversations, agentContexts, fsmOrchestrator, orchestratorAgent, router, approvalManager, plans, planService, bus, cfg.Defaults.MaxAgentSwitches)

	server := api.NewServer(conversations, fac, agentContexts, connManager, obsManager, 200)

	go func() {
		slog.Info("http server listening", "addr", httpAddr)
		if err := server.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutting down http server", "error", err)
	}
}
