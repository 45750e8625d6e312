// Package e2e drives the spec's own end-to-end scenarios against the
// real orchestration stack: Postgres-backed repositories, the FSM,
// the approval subsystem, plan execution, and the agent registry, all
// wired exactly as cmd/agentrt/main.go wires them. Only the LLM
// provider is scripted — the one external dependency every scenario
// needs predictable answers from.
package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentrt/pkg/agent"
	"github.com/codeready-toolchain/agentrt/pkg/approval"
	"github.com/codeready-toolchain/agentrt/pkg/config"
	"github.com/codeready-toolchain/agentrt/pkg/database"
	"github.com/codeready-toolchain/agentrt/pkg/events"
	"github.com/codeready-toolchain/agentrt/pkg/execution"
	"github.com/codeready-toolchain/agentrt/pkg/facade"
	"github.com/codeready-toolchain/agentrt/pkg/fsm"
	"github.com/codeready-toolchain/agentrt/pkg/llmturn"
	"github.com/codeready-toolchain/agentrt/pkg/locks"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/repositories"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
	"github.com/codeready-toolchain/agentrt/pkg/tools"
	testdb "github.com/codeready-toolchain/agentrt/test/database"
)

// agentRouterAdapter bridges *agent.Router to execution.AgentRouter,
// the same thin wrapper cmd/agentrt/main.go uses.
type agentRouterAdapter struct{ r *agent.Router }

func (a agentRouterAdapter) Agent(name string) (execution.Agent, error) { return a.r.Agent(name) }

// approvalEvaluatorAdapter projects approval.Manager.Evaluate's
// (Decision, *ApprovalRequest, error) onto the (bool, string, error)
// shape agent.ApprovalEvaluator and llmturn.ApprovalDecider declare.
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

// Env is a complete, database-backed instance of the orchestration
// runtime, wired the way cmd/agentrt/main.go wires it, for driving
// full request/response scenarios against in a test.
type Env struct {
	t *testing.T

	DB            *database.Client
	Conversations *repositories.ConversationRepo
	AgentContexts *repositories.AgentContextRepo
	Approvals     *repositories.ApprovalRepo
	Plans         *repositories.PlanRepo
	FSMStates     *repositories.FSMStateRepo

	Bus             *events.Bus
	FSM             *fsm.Orchestrator
	ApprovalManager *approval.Manager
	Sweeper         *approval.Sweeper
	PlanService     *execution.PlanService
	Facade          *facade.Facade

	LLM *ScriptedLLM
}

// defaultApprovalPolicy requires approval for any write_file call and
// for nothing else, so plans auto-approve. It has the shape of the
// approval_policy section of the config.yaml cmd/agentrt/main.go loads.
func defaultApprovalPolicy() config.ApprovalPolicyConfig {
	return config.ApprovalPolicyConfig{
		Enabled:                 true,
		DefaultRequiresApproval: false,
		SweepInterval:           time.Hour, // tests sweep manually, never on a ticker
		Timeout:                 5 * time.Minute,
		Rules: []config.ApprovalRule{
			{RequestType: string(models.RequestTypeTool), SubjectPattern: `^write_file$`, RequiresApproval: true, Reason: "writes are destructive"},
		},
	}
}

// NewEnv builds a complete Env against a fresh per-test schema, wired
// with llm as the sole provider for classification, planning, and
// every specialist's turns. policy overrides the default approval
// rules; pass nil to use defaultApprovalPolicy.
func NewEnv(t *testing.T, llm *ScriptedLLM, policy *config.ApprovalPolicyConfig) *Env {
	t.Helper()

	dbClient := testdb.NewTestClient(t)
	conversations := repositories.NewConversationRepo(dbClient.Client)
	agentContexts := repositories.NewAgentContextRepo(dbClient.Client)
	approvals := repositories.NewApprovalRepo(dbClient.Client)
	fsmStates := repositories.NewFSMStateRepo(dbClient.Client)
	plans := repositories.NewPlanRepo(dbClient.Client)

	bus := events.NewBus(dbClient.DB())

	fsmOrch := fsm.NewOrchestrator(fsmStates)

	registry, err := tools.NewRegistry()
	require.NoError(t, err, "building tool registry")

	cfg := defaultApprovalPolicy()
	if policy != nil {
		cfg = *policy
	}
	approvalPolicy, err := approval.NewPolicy(cfg)
	require.NoError(t, err, "compiling approval policy")
	approvalManager := approval.NewManager(approvals, bus, approvalPolicy)
	approvalAdapter := approvalEvaluatorAdapter{m: approvalManager}
	sweeper := approval.NewSweeper(approvalManager, approvals, cfg.Timeout, cfg.SweepInterval).WithEvents(bus)

	classifier := agent.NewClassifier(llm, "test-model")
	architect := agent.NewArchitect(plans, llm, "test-model")
	turnHandler := llmturn.NewHandler(llm, conversations, approvalAdapter, bus, "test-model")

	coderAgent, err := agent.NewCoderAgent(conversations, conversations, turnHandler, registry)
	require.NoError(t, err)
	debugAgent, err := agent.NewDebugAgent(conversations, conversations, turnHandler, registry)
	require.NoError(t, err)
	askAgent, err := agent.NewAskAgent(conversations, conversations, turnHandler, registry)
	require.NoError(t, err)
	router := agent.NewRouter(coderAgent, debugAgent, askAgent)

	orchestratorAgent := agent.NewOrchestratorAgent(fsmOrch, classifier, architect, approvalAdapter, false)

	lockRegistry := locks.NewRegistry(1000)
	subtaskExecutor := execution.NewSubtaskExecutor(plans, conversations, agentRouterAdapter{r: router}, bus)
	planService := execution.NewPlanService(plans, subtaskExecutor, bus, false)

	fac := facade.NewFacade(lockRegistry, conversations, agentContexts, fsmOrch, orchestratorAgent, router, approvalManager, plans, planService, bus, 25)

	return &Env{
		t:               t,
		DB:              dbClient,
		Conversations:   conversations,
		AgentContexts:   agentContexts,
		Approvals:       approvals,
		Plans:           plans,
		FSMStates:       fsmStates,
		Bus:             bus,
		FSM:             fsmOrch,
		ApprovalManager: approvalManager,
		Sweeper:         sweeper,
		PlanService:     planService,
		Facade:          fac,
		LLM:             llm,
	}
}

// NewConversation creates and returns a fresh, active conversation ID.
func (e *Env) NewConversation() string {
	e.t.Helper()
	id := uuid.New().String()
	_, err := e.Conversations.Create(context.Background(), id, nil, nil, 200)
	require.NoError(e.t, err, "creating conversation")
	return id
}

// SendMessage runs HandleMessage to completion and returns every chunk
// emitted.
func (e *Env) SendMessage(conversationID, message string) []stream.Chunk {
	e.t.Helper()
	ctx := context.Background()
	var runErr error
	chunks := stream.Collect(ctx, func(cctx context.Context, w *stream.Writer) {
		runErr = e.Facade.HandleMessage(cctx, conversationID, message, w)
	})
	require.NoError(e.t, runErr)
	return chunks
}

// PostToolResult runs HandleToolResult to completion and returns every
// chunk emitted, simulating the IDE posting back a tool's result.
func (e *Env) PostToolResult(conversationID, callID, toolCallID, result string, isError bool) []stream.Chunk {
	e.t.Helper()
	ctx := context.Background()
	var runErr error
	chunks := stream.Collect(ctx, func(cctx context.Context, w *stream.Writer) {
		runErr = e.Facade.HandleToolResult(cctx, conversationID, callID, toolCallID, result, isError, w)
	})
	require.NoError(e.t, runErr)
	return chunks
}

// PostToolDecision runs HandleToolDecision to completion and returns
// every chunk emitted.
func (e *Env) PostToolDecision(conversationID, approvalRequestID, decision string, reason *string) []stream.Chunk {
	e.t.Helper()
	ctx := context.Background()
	var runErr error
	chunks := stream.Collect(ctx, func(cctx context.Context, w *stream.Writer) {
		runErr = e.Facade.HandleToolDecision(cctx, conversationID, approvalRequestID, decision, reason, w)
	})
	require.NoError(e.t, runErr)
	return chunks
}

// PostPlanDecision runs HandlePlanDecision to completion and returns
// every chunk emitted.
func (e *Env) PostPlanDecision(conversationID, approvalRequestID, decision string, reason *string) []stream.Chunk {
	e.t.Helper()
	ctx := context.Background()
	var runErr error
	chunks := stream.Collect(ctx, func(cctx context.Context, w *stream.Writer) {
		runErr = e.Facade.HandlePlanDecision(cctx, conversationID, approvalRequestID, decision, reason, w)
	})
	require.NoError(e.t, runErr)
	return chunks
}

// chunkOfType returns the first chunk of type typ, or nil.
func chunkOfType(chunks []stream.Chunk, typ stream.ChunkType) *stream.Chunk {
	for i := range chunks {
		if chunks[i].Type == typ {
			return &chunks[i]
		}
	}
	return nil
}

// ScriptedLLM answers agent.ChatClient.Complete (classifier, architect)
// and llmturn.LLMClient.ChatCompletion (every specialist turn) from two
// independent, ordered queues — grounded in the teacher's
// ScriptedLLMClient, adapted to this runtime's split completion
// contracts instead of the teacher's single chat-completion shape.
type ScriptedLLM struct {
	mu sync.Mutex

	completes    []string
	completeErrs []error

	turns    []llmturn.ChatResponse
	turnErrs []error
}

// QueueComplete appends a raw-text answer consumed by the next
// Complete call (classifier/architect).
func (s *ScriptedLLM) QueueComplete(content string) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completes = append(s.completes, content)
	s.completeErrs = append(s.completeErrs, nil)
	return s
}

// QueueTurn appends a structured answer consumed by the next
// ChatCompletion call (a specialist's turn).
func (s *ScriptedLLM) QueueTurn(resp llmturn.ChatResponse) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, resp)
	s.turnErrs = append(s.turnErrs, nil)
	return s
}

func (s *ScriptedLLM) Complete(_ context.Context, _ string, _ []agent.ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.completes) == 0 {
		return "", nil
	}
	content, err := s.completes[0], s.completeErrs[0]
	s.completes, s.completeErrs = s.completes[1:], s.completeErrs[1:]
	return content, err
}

func (s *ScriptedLLM) ChatCompletion(_ context.Context, _ llmturn.ChatRequest) (llmturn.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return llmturn.ChatResponse{}, nil
	}
	resp, err := s.turns[0], s.turnErrs[0]
	s.turns, s.turnErrs = s.turns[1:], s.turnErrs[1:]
	return resp, err
}
