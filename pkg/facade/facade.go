// Package facade implements the message orchestration facade: the
// single entry point transport handlers call into, serializing every
// request against a conversation's lock and threading the orchestrator,
// specialist agents, plan execution, and the human-approval subsystem
// into one coherent turn (spec §4.12).
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/agent"
	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/execution"
	"github.com/codeready-toolchain/agentrt/pkg/locks"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// Conversations is the narrow conversation-store surface the facade
// needs: load the aggregate to check activity, and append tool-role
// messages the facade itself originates (results and rejections).
type Conversations interface {
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, msg models.Message) (models.Message, error)
}

// AgentContexts is the loop-guard and current-owner surface the facade
// needs around pkg/repositories.AgentContextRepo.
type AgentContexts interface {
	GetOrCreate(ctx context.Context, conversationID, initialAgent string, maxSwitches int) (models.AgentContext, error)
	FindBySessionID(ctx context.Context, conversationID string) (models.AgentContext, error)
	RecordSwitch(ctx context.Context, conversationID, toAgent string, reason *string, confidence *float64) (models.AgentContext, error)
}

// FSM is the subset of pkg/fsm.Orchestrator the facade drives directly.
// Everything up through planReview is already driven by the
// OrchestratorAgent; the facade only needs to advance the state machine
// past the human-decision boundary, since that's the one edge no agent
// call is live to do it from.
type FSM interface {
	Transition(ctx context.Context, sessionID string, event models.FSMEvent, metadata map[string]any) (models.FSMContext, error)
}

// Orchestrator is the entry-point agent every inbound message passes
// through first. Satisfied by *agent.OrchestratorAgent.
type Orchestrator interface {
	Process(ctx context.Context, conversationID, message string, w *stream.Writer) error
}

// Approvals is the subset of approval.Manager the facade needs to
// resolve a pending decision and look one up by ID.
type Approvals interface {
	GetPending(ctx context.Context, requestID string) (models.ApprovalRequest, error)
	Approve(ctx context.Context, requestID string) (models.ApprovalRequest, error)
	Reject(ctx context.Context, requestID string, reason *string) (models.ApprovalRequest, error)
}

// PlanRunner drives an approved plan to completion. Satisfied by
// *execution.PlanService.
type PlanRunner interface {
	Run(ctx context.Context, conversationID, planID string, w *stream.Writer) error
}

// EventPublisher is the narrow event-bus surface used across the
// runtime.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// Facade is the Message Orchestration Facade: it owns the
// per-conversation lock and is the only component that calls both the
// orchestrator/specialist agents and the plan/approval subsystems in
// the same request.
type Facade struct {
	locks         *locks.Registry
	conversations Conversations
	agentContexts AgentContexts
	fsmOrch       FSM
	orchestrator  Orchestrator
	router        *agent.Router
	approvals     Approvals
	plans         execution.PlanRepo
	planRunner    PlanRunner
	events        EventPublisher
	maxSwitches   int
}

// NewFacade wires a Facade. maxSwitches seeds every conversation's
// agent-context loop guard (spec §4.9).
func NewFacade(
	lockRegistry *locks.Registry,
	conversations Conversations,
	agentContexts AgentContexts,
	fsmOrch FSM,
	orchestrator Orchestrator,
	router *agent.Router,
	approvals Approvals,
	plans execution.PlanRepo,
	planRunner PlanRunner,
	events EventPublisher,
	maxSwitches int,
) *Facade {
	return &Facade{
		locks:         lockRegistry,
		conversations: conversations,
		agentContexts: agentContexts,
		fsmOrch:       fsmOrch,
		orchestrator:  orchestrator,
		router:        router,
		approvals:     approvals,
		plans:         plans,
		planRunner:    planRunner,
		events:        events,
		maxSwitches:   maxSwitches,
	}
}

// HandleMessage is the entry point for every inbound user message: it
// validates the conversation is still active, seeds its agent context,
// and runs the orchestrator, re-dispatching to a specialist or driving
// an auto-approved plan to execution as the orchestrator's output
// demands.
func (f *Facade) HandleMessage(ctx context.Context, conversationID, message string, w *stream.Writer) error {
	release, err := f.locks.Acquire(ctx, conversationID)
	if err != nil {
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"conversation_id": conversationID}))
	}
	defer release()

	conv, err := f.conversations.Get(ctx, conversationID)
	if err != nil {
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"conversation_id": conversationID}))
	}
	if !conv.IsActive {
		verr := &apperrors.ValidationError{Field: "conversation_id", Message: "conversation is not active"}
		return w.Emit(ctx, stream.ErrorChunk(verr, map[string]any{"conversation_id": conversationID}))
	}

	if _, err := f.agentContexts.GetOrCreate(ctx, conversationID, string(agent.Orchestrator), f.maxSwitches); err != nil {
		return fmt.Errorf("seeding agent context for %s: %w", conversationID, err)
	}

	return f.runOrchestrator(ctx, conversationID, message, w)
}

// runOrchestrator buffers the orchestrator's full turn (the same
// buffer-then-forward idiom pkg/execution's subtask runner uses) so it
// can inspect the terminal chunk before deciding what happens next:
// a switch_agent chunk means dispatch to the named specialist with the
// same message, an auto-approved plan's status chunk means drive that
// plan straight to execution.
func (f *Facade) runOrchestrator(ctx context.Context, conversationID, message string, w *stream.Writer) error {
	var runErr error
	chunks := stream.Collect(ctx, func(cctx context.Context, inner *stream.Writer) {
		runErr = f.orchestrator.Process(cctx, conversationID, message, inner)
	})

	var switchTarget, autoApprovedPlanID string
	for _, c := range chunks {
		if err := w.Emit(ctx, c); err != nil {
			return err
		}
		switch {
		case c.Type == stream.TypeSwitchAgent && c.ToolName != nil:
			switchTarget = *c.ToolName
		case c.Type == stream.TypeStatus && c.Metadata != nil && c.Metadata["fsm_state"] == string(models.StatePlanExecution):
			if id, ok := c.Metadata["plan_id"].(string); ok {
				autoApprovedPlanID = id
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	if switchTarget != "" {
		return f.dispatchToSpecialist(ctx, conversationID, switchTarget, message, w)
	}
	if autoApprovedPlanID != "" {
		return f.runApprovedPlan(ctx, conversationID, autoApprovedPlanID, w)
	}
	return nil
}

// dispatchToSpecialist hands an atomic task to the agent the
// classifier chose, recording a handoff in the agent context when the
// target differs from whoever currently owns the conversation and
// refusing once the loop-guard ceiling is hit (spec §4.9).
func (f *Facade) dispatchToSpecialist(ctx context.Context, conversationID, target, message string, w *stream.Writer) error {
	ac, err := f.agentContexts.FindBySessionID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading agent context before dispatch: %w", err)
	}

	if ac.CurrentAgent != target {
		if !ac.CanSwitch() {
			swErr := &apperrors.AgentSwitchError{
				ConversationID: conversationID,
				ToAgent:        target,
				Reason:         fmt.Sprintf("switch ceiling of %d reached", ac.MaxSwitches),
			}
			return w.Emit(ctx, stream.ErrorChunk(swErr, map[string]any{"conversation_id": conversationID}))
		}
		if _, err := f.agentContexts.RecordSwitch(ctx, conversationID, target, nil, nil); err != nil {
			return fmt.Errorf("recording agent switch to %s: %w", target, err)
		}
	}

	worker, err := f.router.Agent(target)
	if err != nil {
		return fmt.Errorf("resolving specialist agent %q: %w", target, err)
	}
	return worker.Process(ctx, conversationID, message, w)
}

// resumeCurrentAgent re-enters whichever specialist currently owns the
// conversation, without appending anything first — used once a tool
// result or a tool rejection has already been appended to history.
func (f *Facade) resumeCurrentAgent(ctx context.Context, conversationID string, w *stream.Writer) error {
	ac, err := f.agentContexts.FindBySessionID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading agent context to resume %s: %w", conversationID, err)
	}
	worker, err := f.router.Agent(ac.CurrentAgent)
	if err != nil {
		return fmt.Errorf("resolving agent %q to resume: %w", ac.CurrentAgent, err)
	}
	return worker.Resume(ctx, conversationID, w)
}

// HandleToolResult appends an IDE-executed tool's result to the
// conversation and resumes the turn it suspended.
func (f *Facade) HandleToolResult(ctx context.Context, conversationID, callID, toolCallID, result string, isError bool, w *stream.Writer) error {
	release, err := f.locks.Acquire(ctx, conversationID)
	if err != nil {
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"conversation_id": conversationID}))
	}
	defer release()

	msg := models.Message{Role: models.RoleTool, Content: &result, ToolCallID: &toolCallID}
	if _, err := f.conversations.AppendMessage(ctx, conversationID, msg); err != nil {
		return fmt.Errorf("persisting tool result: %w", err)
	}
	if err := w.Emit(ctx, stream.ToolResultChunk(callID, toolCallID, result, isError)); err != nil {
		return err
	}
	return f.resumeCurrentAgent(ctx, conversationID, w)
}

// HandleToolDecision resolves a pending tool approval. Approval does
// not itself resume the turn: the IDE still has to execute the tool and
// post its result, which is what HandleToolResult resumes on. Rejection
// resumes immediately, since no result is ever coming — a rejection
// notice takes its place, paired to the suspended tool call via the
// request's stashed tool-call ID (models.ToolCallDetailKey).
func (f *Facade) HandleToolDecision(ctx context.Context, conversationID, approvalRequestID, decision string, reason *string, w *stream.Writer) error {
	release, err := f.locks.Acquire(ctx, conversationID)
	if err != nil {
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"conversation_id": conversationID}))
	}
	defer release()

	switch decision {
	case "approve":
		if _, err := f.approvals.Approve(ctx, approvalRequestID); err != nil {
			return fmt.Errorf("approving tool call: %w", err)
		}
		return w.Emit(ctx, stream.StatusChunk("Tool call approved, waiting for its result.", map[string]any{
			"approval_request_id": approvalRequestID,
		}))

	case "reject":
		req, err := f.approvals.Reject(ctx, approvalRequestID, reason)
		if err != nil {
			return fmt.Errorf("rejecting tool call: %w", err)
		}
		toolCallID, _ := req.Details[models.ToolCallDetailKey].(string)
		note := "Tool call rejected by user."
		if reason != nil && *reason != "" {
			note = fmt.Sprintf("Tool call rejected by user: %s", *reason)
		}
		rejectMsg := models.Message{Role: models.RoleTool, Content: &note, ToolCallID: &toolCallID}
		if _, err := f.conversations.AppendMessage(ctx, conversationID, rejectMsg); err != nil {
			return fmt.Errorf("persisting tool rejection: %w", err)
		}
		return f.resumeCurrentAgent(ctx, conversationID, w)

	default:
		verr := &apperrors.ValidationError{Field: "decision", Message: fmt.Sprintf("unknown tool decision %q", decision)}
		return w.Emit(ctx, stream.ErrorChunk(verr, nil))
	}
}

// HandlePlanDecision resolves a pending plan approval. Modification is
// wired through the FSM's planModificationRequested edge but not
// implemented past announcing it — re-planning from feedback needs a
// human-facing revision flow this runtime doesn't have a surface for
// yet (spec §9 leaves this an explicit hook rather than guessing at
// one).
func (f *Facade) HandlePlanDecision(ctx context.Context, conversationID, approvalRequestID, decision string, reason *string, w *stream.Writer) error {
	release, err := f.locks.Acquire(ctx, conversationID)
	if err != nil {
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"conversation_id": conversationID}))
	}
	defer release()

	req, err := f.approvals.GetPending(ctx, approvalRequestID)
	if err != nil {
		return fmt.Errorf("loading plan approval %s: %w", approvalRequestID, err)
	}
	planID, _ := req.Details["plan_id"].(string)

	switch decision {
	case "approve":
		if _, err := f.approvals.Approve(ctx, approvalRequestID); err != nil {
			return fmt.Errorf("approving plan: %w", err)
		}
		if _, err := f.fsmOrch.Transition(ctx, conversationID, models.EventPlanApproved, map[string]any{"approved_by": "human"}); err != nil {
			return fmt.Errorf("transitioning planReview to planExecution: %w", err)
		}
		return f.runApprovedPlan(ctx, conversationID, planID, w)

	case "reject":
		if _, err := f.approvals.Reject(ctx, approvalRequestID, reason); err != nil {
			return fmt.Errorf("rejecting plan: %w", err)
		}
		if _, err := f.fsmOrch.Transition(ctx, conversationID, models.EventPlanRejected, map[string]any{"rejected_by": "human"}); err != nil {
			return fmt.Errorf("transitioning planReview to idle: %w", err)
		}
		return w.Emit(ctx, stream.PlanRejectedChunk(planID, map[string]any{"reason": reason}))

	case "modify":
		if _, err := f.fsmOrch.Transition(ctx, conversationID, models.EventPlanModificationRequested, map[string]any{"requested_by": "human"}); err != nil {
			return fmt.Errorf("transitioning planReview to architectPlanning: %w", err)
		}
		return w.Emit(ctx, stream.StatusChunk(
			"Plan modification isn't implemented yet. Reject this plan and send a new message to re-plan.",
			map[string]any{"plan_id": planID, "fsm_state": string(models.StateArchitectPlanning)},
		))

	default:
		verr := &apperrors.ValidationError{Field: "decision", Message: fmt.Sprintf("unknown plan decision %q", decision)}
		return w.Emit(ctx, stream.ErrorChunk(verr, nil))
	}
}

// runApprovedPlan marks planID approved (if it's still a fresh draft —
// an already-approved plan reaching here means a resumed in-progress
// run) and drives it to completion, advancing the FSM off
// planExecution once the run settles either way.
func (f *Facade) runApprovedPlan(ctx context.Context, conversationID, planID string, w *stream.Writer) error {
	plan, err := f.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("loading plan %s to approve: %w", planID, err)
	}
	if plan.Status == models.PlanStatusDraft {
		now := time.Now().UTC()
		plan.Status = models.PlanStatusApproved
		plan.ApprovedAt = &now
		if err := f.plans.Save(ctx, plan, true); err != nil {
			return fmt.Errorf("marking plan %s approved: %w", planID, err)
		}
	}

	if runErr := f.planRunner.Run(ctx, conversationID, planID, w); runErr != nil {
		if _, ferr := f.fsmOrch.Transition(ctx, conversationID, models.EventPlanExecutionFailed, map[string]any{"error": runErr.Error()}); ferr != nil {
			return fmt.Errorf("transitioning planExecution to errorHandling: %w", ferr)
		}
		return w.Emit(ctx, stream.ErrorChunk(runErr, map[string]any{"conversation_id": conversationID, "plan_id": planID}))
	}

	if _, err := f.fsmOrch.Transition(ctx, conversationID, models.EventPlanExecutionCompleted, nil); err != nil {
		return fmt.Errorf("transitioning planExecution to completed: %w", err)
	}
	return nil
}
