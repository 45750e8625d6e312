package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/fsm"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// classifierAgentMapping is the fixed routing table spec §4.10 names:
// classifier label -> executing agent variant.
var classifierAgentMapping = map[string]string{
	"code":    string(Coder),
	"plan":    string(Architect),
	"debug":   string(Debug),
	"explain": string(Ask),
}

// FSMOrchestrator is the per-conversation state machine contract the
// orchestrator agent drives.
type FSMOrchestrator interface {
	GetOrCreateContext(ctx context.Context, sessionID string) (models.FSMContext, error)
	Transition(ctx context.Context, sessionID string, event models.FSMEvent, metadata map[string]any) (models.FSMContext, error)
	Reset(ctx context.Context, sessionID string) (models.FSMContext, error)
}

// PlanCreator is the planning contract the orchestrator needs for the
// non-atomic path. Satisfied by *Architect.
type PlanCreator interface {
	CreatePlan(ctx context.Context, conversationID, task string, taskContext map[string]any) (models.ExecutionPlan, error)
}

// ApprovalEvaluator is the narrow approval contract the orchestrator
// needs to gate a freshly drafted plan.
type ApprovalEvaluator interface {
	Evaluate(ctx context.Context, sessionID string, requestType models.RequestType, subject string, details map[string]any) (requiresApproval bool, approvalRequestID string, err error)
}

// OrchestratorAgent is the entry point for every inbound message: it
// drives the FSM, classifies the task, and either hands off to a
// specialist agent (atomic path) or coordinates plan creation and
// approval itself (non-atomic path) — spec §4.10, §4.12.
type OrchestratorAgent struct {
	fsm             FSMOrchestrator
	classifier      *Classifier
	architect       PlanCreator
	approvals       ApprovalEvaluator
	singleAgentMode bool
}

// NewOrchestratorAgent builds an OrchestratorAgent. singleAgentMode
// replaces the multi-agent registry with {orchestrator, universal}:
// every message routes to universal without consulting the classifier
// (spec §4.10).
func NewOrchestratorAgent(fsmOrch FSMOrchestrator, classifier *Classifier, architect PlanCreator, approvals ApprovalEvaluator, singleAgentMode bool) *OrchestratorAgent {
	return &OrchestratorAgent{fsm: fsmOrch, classifier: classifier, architect: architect, approvals: approvals, singleAgentMode: singleAgentMode}
}

// Process runs one message through the FSM and classification, then
// either emits a terminal switch_agent chunk (atomic path, for the
// facade to re-dispatch) or forwards the plan-lifecycle chunks the
// non-atomic path produces internally (spec §4.12).
func (o *OrchestratorAgent) Process(ctx context.Context, conversationID, message string, w *stream.Writer) error {
	fsmCtx, err := o.fsm.GetOrCreateContext(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading fsm context: %w", err)
	}

	if fsmCtx.CurrentState != models.StateIdle && fsm.RequiresResetOnNewMessage(fsmCtx.CurrentState) {
		if fsmCtx, err = o.fsm.Reset(ctx, conversationID); err != nil {
			return fmt.Errorf("resetting fsm before new message: %w", err)
		}
	}

	if fsmCtx.CurrentState == models.StateIdle {
		if _, err = o.fsm.Transition(ctx, conversationID, models.EventReceiveMessage, map[string]any{"message": message}); err != nil {
			return fmt.Errorf("transitioning idle to classify: %w", err)
		}
	}

	classification := o.classify(ctx, message)

	if classification.IsAtomic {
		return o.routeAtomic(ctx, conversationID, classification, w)
	}
	return o.routeComplex(ctx, conversationID, message, classification, w)
}

func (o *OrchestratorAgent) classify(ctx context.Context, message string) Classification {
	if o.singleAgentMode {
		return Classification{IsAtomic: true, Agent: "universal", Confidence: "high", Reason: "single-agent mode: only universal agent available"}
	}
	return o.classifier.Classify(ctx, message)
}

func (o *OrchestratorAgent) routeAtomic(ctx context.Context, conversationID string, classification Classification, w *stream.Writer) error {
	fsmCtx, err := o.fsm.Transition(ctx, conversationID, models.EventIsAtomicTrue, classificationMetadata(classification))
	if err != nil {
		return fmt.Errorf("transitioning classify to execution: %w", err)
	}

	target := o.targetAgent(classification.Agent)
	return w.Emit(ctx, stream.SwitchAgentChunk(target, map[string]any{
		"target_agent":          target,
		"reason":                classification.Reason,
		"confidence":            classification.Confidence,
		"is_atomic":             true,
		"fsm_state":             string(fsmCtx.CurrentState),
		"classification_method": o.classificationMethod(),
	}))
}

func (o *OrchestratorAgent) routeComplex(ctx context.Context, conversationID, message string, classification Classification, w *stream.Writer) error {
	if _, err := o.fsm.Transition(ctx, conversationID, models.EventIsAtomicFalse, classificationMetadata(classification)); err != nil {
		return fmt.Errorf("transitioning classify to planRequired: %w", err)
	}
	if _, err := o.fsm.Transition(ctx, conversationID, models.EventRouteToArchitect, map[string]any{"target_agent": string(Architect)}); err != nil {
		return fmt.Errorf("transitioning planRequired to architectPlanning: %w", err)
	}
	return o.coordinatePlan(ctx, conversationID, message, w)
}

// coordinatePlan creates a plan through the architect, advances the
// FSM to planReview, and either auto-approves it or raises a pending
// approval — emitting plan_created/plan_approval_required chunks the
// facade forwards verbatim and suspends on (spec §4.12).
func (o *OrchestratorAgent) coordinatePlan(ctx context.Context, conversationID, task string, w *stream.Writer) error {
	if err := w.Emit(ctx, stream.StatusChunk("Architect is creating an execution plan...", map[string]any{
		"fsm_state": string(models.StateArchitectPlanning),
	})); err != nil {
		return err
	}

	plan, err := o.architect.CreatePlan(ctx, conversationID, task, nil)
	if err != nil {
		if _, ferr := o.fsm.Transition(ctx, conversationID, models.EventPlanningFailed, map[string]any{"error": err.Error()}); ferr != nil {
			return fmt.Errorf("transitioning architectPlanning to errorHandling: %w", ferr)
		}
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"fsm_state": string(models.StateErrorHandling)}))
	}

	if _, err := o.fsm.Transition(ctx, conversationID, models.EventPlanCreated, map[string]any{"plan_id": plan.ID}); err != nil {
		return fmt.Errorf("transitioning architectPlanning to planReview: %w", err)
	}

	summary := planSummary(plan)
	if err := w.Emit(ctx, stream.PlanCreatedChunk(plan.ID, map[string]any{
		"fsm_state":    string(models.StatePlanReview),
		"plan_summary": summary,
	})); err != nil {
		return err
	}

	requiresApproval, approvalRequestID, err := o.approvals.Evaluate(ctx, conversationID, models.RequestTypePlan, truncate(plan.Goal, 100), summary)
	if err != nil {
		return fmt.Errorf("evaluating plan approval policy: %w", err)
	}

	if !requiresApproval {
		if _, err := o.fsm.Transition(ctx, conversationID, models.EventPlanApproved, map[string]any{"approved_by": "auto"}); err != nil {
			return fmt.Errorf("auto-approving plan: %w", err)
		}
		return w.Emit(ctx, stream.StatusChunk("Plan auto-approved, awaiting execution.", map[string]any{
			"fsm_state": string(models.StatePlanExecution),
			"plan_id":   plan.ID,
		}))
	}

	return w.Emit(ctx, stream.PlanApprovalRequiredChunk(approvalRequestID, plan.ID, summary))
}

func (o *OrchestratorAgent) targetAgent(classified string) string {
	if o.singleAgentMode {
		return string(Universal)
	}
	if target, ok := classifierAgentMapping[classified]; ok {
		return target
	}
	return string(Coder)
}

func (o *OrchestratorAgent) classificationMethod() string {
	if o.singleAgentMode {
		return "single_agent_mode"
	}
	return "planning_system"
}

func classificationMetadata(c Classification) map[string]any {
	return map[string]any{
		"agent":      c.Agent,
		"confidence": c.Confidence,
		"is_atomic":  c.IsAtomic,
		"reason":     c.Reason,
	}
}

func planSummary(plan models.ExecutionPlan) map[string]any {
	subtasks := make([]map[string]any, len(plan.Subtasks))
	for i, st := range plan.Subtasks {
		subtasks[i] = map[string]any{
			"position":     st.Position,
			"description":  st.Description,
			"agent":        st.Agent,
			"dependencies": st.Dependencies,
		}
	}
	return map[string]any{
		"plan_id":        plan.ID,
		"goal":           plan.Goal,
		"subtasks_count": len(plan.Subtasks),
		"subtasks":       subtasks,
	}
}
