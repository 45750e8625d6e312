// Package execution drives a plan's subtasks to completion: running
// each one in an isolated conversation context, forwarding its stream,
// and walking the dependency levels a plan decomposes into.
package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// llmFailureSentinels mark an otherwise-successful assistant_message as
// a disguised LLM-layer failure.
var llmFailureSentinels = []string{"[Error]", "LiteLLM proxy unavailable", "No tool output found"}

// ConversationStore is the narrow context-isolation surface the
// executor needs: snapshot the working message list away, install an
// isolated one, and restore afterward.
type ConversationStore interface {
	Snapshot(ctx context.Context, conversationID string) (snapshotID string, err error)
	ReplaceMessages(ctx context.Context, conversationID string, messages []models.Message) error
	// RestoreSnapshot restores conversationID to the snapshot's message
	// list and, if resultMessage is non-nil, appends it afterward — the
	// "subtask result" message spec's invariant I5 allows.
	RestoreSnapshot(ctx context.Context, conversationID, snapshotID string, resultMessage *models.Message) error
}

// Agent is the worker contract a subtask is routed to.
type Agent interface {
	Process(ctx context.Context, conversationID string, message string, w *stream.Writer) error
}

// AgentRouter resolves an agent name to its worker.
type AgentRouter interface {
	Agent(name string) (Agent, error)
}

// PlanRepo is the subset of the plan repository the executor needs.
type PlanRepo interface {
	FindByID(ctx context.Context, planID string) (models.ExecutionPlan, error)
	Save(ctx context.Context, plan models.ExecutionPlan, commit bool) error
}

// EventPublisher is the narrow event-bus surface used across the
// execution package.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// SubtaskExecutor runs one subtask at a time in an isolated context.
type SubtaskExecutor struct {
	plans  PlanRepo
	convos ConversationStore
	agents AgentRouter
	events EventPublisher
}

// NewSubtaskExecutor builds a SubtaskExecutor.
func NewSubtaskExecutor(plans PlanRepo, convos ConversationStore, agents AgentRouter, events EventPublisher) *SubtaskExecutor {
	return &SubtaskExecutor{plans: plans, convos: convos, agents: agents, events: events}
}

// Execute runs the subtask at position within planID, forwarding every
// chunk the worker agent yields to w. Once the worker has been started,
// it leaves the subtask `done` or `failed` and restores the
// conversation's message list, however the worker exits. A failure
// while marking the subtask running, taking the snapshot or installing
// the isolated context returns before the worker starts and leaves the
// subtask as it was persisted at that point. The returned error is reserved
// for infrastructure failures (plan/subtask missing, snapshot I/O) —
// an ordinary subtask failure is reported through the subtask's own
// status and a forwarded `error` chunk, not a Go error.
func (e *SubtaskExecutor) Execute(ctx context.Context, conversationID, planID string, position int, w *stream.Writer) error {
	plan, err := e.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	subtask, idx, ok := findSubtask(plan, position)
	if !ok {
		return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d not found in plan %s", position, planID)}
	}
	if subtask.Status != models.SubtaskPending {
		return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d is not pending (current: %s)", position, subtask.Status)}
	}

	now := time.Now().UTC()
	subtask.Status = models.SubtaskRunning
	subtask.StartedAt = &now
	plan.Subtasks[idx] = subtask
	if err := e.plans.Save(ctx, plan, true); err != nil {
		return fmt.Errorf("marking subtask running: %w", err)
	}
	e.events.Publish(ctx, "SubtaskStarted", map[string]any{"plan_id": planID, "position": position, "agent": subtask.Agent})

	snapshotID, err := e.convos.Snapshot(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("snapshotting conversation: %w", err)
	}

	if err := e.convos.ReplaceMessages(ctx, conversationID, buildIsolatedContext(plan, subtask)); err != nil {
		return fmt.Errorf("installing isolated context: %w", err)
	}

	resultMessage, infraErr := e.runAndFinalize(ctx, planID, position, &subtask, conversationID, w)

	if restoreErr := e.convos.RestoreSnapshot(ctx, conversationID, snapshotID, resultMessage); restoreErr != nil && infraErr == nil {
		infraErr = fmt.Errorf("restoring conversation snapshot: %w", restoreErr)
	}
	return infraErr
}

// runAndFinalize invokes the worker, aggregates its output, and
// persists the subtask's terminal status. It never returns a non-nil
// error for a subtask-level failure — only for problems that prevent
// recording an outcome at all.
func (e *SubtaskExecutor) runAndFinalize(ctx context.Context, planID string, position int, subtask *models.Subtask, conversationID string, w *stream.Writer) (*models.Message, error) {
	agent, err := e.agents.Agent(subtask.Agent)
	if err != nil {
		return e.failSubtask(ctx, planID, position, fmt.Sprintf("agent %q not available: %v", subtask.Agent, err), w)
	}

	collected := stream.Collect(ctx, func(cctx context.Context, inner *stream.Writer) {
		_ = agent.Process(cctx, conversationID, subtask.Description, inner)
	})

	var content strings.Builder
	var failureMessage string
	for _, c := range collected {
		if err := w.Emit(ctx, c); err != nil {
			return nil, fmt.Errorf("forwarding subtask chunk: %w", err)
		}
		if c.Content != nil {
			if content.Len() > 0 {
				content.WriteString("\n")
			}
			content.WriteString(*c.Content)
		}
		if c.Type == stream.TypeError && failureMessage == "" {
			if c.Error != nil {
				failureMessage = *c.Error
			} else {
				failureMessage = "subtask failed with error"
			}
		}
	}
	if failureMessage == "" {
		if sentinel := matchFailureSentinel(content.String()); sentinel {
			failureMessage = truncate(content.String(), 500)
		}
	}

	if failureMessage != "" {
		return e.failSubtask(ctx, planID, position, failureMessage, w)
	}
	return e.completeSubtask(ctx, planID, position, content.String(), w)
}

func (e *SubtaskExecutor) failSubtask(ctx context.Context, planID string, position int, errMsg string, w *stream.Writer) (*models.Message, error) {
	plan, err := e.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("reloading plan before fail: %w", err)
	}
	subtask, idx, ok := findSubtask(plan, position)
	if !ok {
		return nil, &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d vanished from plan %s", position, planID)}
	}
	now := time.Now().UTC()
	subtask.Status = models.SubtaskFailed
	subtask.Error = ptrStr(errMsg)
	subtask.CompletedAt = &now
	plan.Subtasks[idx] = subtask
	if err := e.plans.Save(ctx, plan, true); err != nil {
		return nil, fmt.Errorf("persisting subtask failure: %w", err)
	}
	e.events.Publish(ctx, "SubtaskFailed", map[string]any{"plan_id": planID, "position": position, "error": errMsg})

	if err := w.Emit(ctx, stream.ErrorChunk(fmt.Errorf("%s", errMsg), map[string]any{"subtask_position": position, "status": "failed", "agent": subtask.Agent})); err != nil {
		return nil, fmt.Errorf("emitting subtask error chunk: %w", err)
	}
	return nil, nil
}

func (e *SubtaskExecutor) completeSubtask(ctx context.Context, planID string, position int, result string, w *stream.Writer) (*models.Message, error) {
	plan, err := e.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("reloading plan before complete: %w", err)
	}
	subtask, idx, ok := findSubtask(plan, position)
	if !ok {
		return nil, &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d vanished from plan %s", position, planID)}
	}
	now := time.Now().UTC()
	subtask.Status = models.SubtaskDone
	subtask.Result = ptrStr(result)
	subtask.CompletedAt = &now
	plan.Subtasks[idx] = subtask
	if err := e.plans.Save(ctx, plan, true); err != nil {
		return nil, fmt.Errorf("persisting subtask completion: %w", err)
	}
	e.events.Publish(ctx, "SubtaskCompleted", map[string]any{"plan_id": planID, "position": position, "agent": subtask.Agent})

	if err := w.Emit(ctx, stream.SubtaskCompletedChunk(planID, map[string]any{
		"subtask_position": position,
		"status":           "completed",
		"agent":            subtask.Agent,
		"duration_seconds": duration(subtask.StartedAt, subtask.CompletedAt),
	})); err != nil {
		return nil, fmt.Errorf("emitting subtask_completed chunk: %w", err)
	}

	resultMsg := &models.Message{Role: models.RoleAssistant, Content: ptrStr(result), CreatedAt: now}
	return resultMsg, nil
}

// Retry resets a failed subtask to pending, bumps its retry count, and
// re-runs it. Permitted only from `failed` (spec §4.7).
func (e *SubtaskExecutor) Retry(ctx context.Context, conversationID, planID string, position int, w *stream.Writer) error {
	plan, err := e.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	subtask, idx, ok := findSubtask(plan, position)
	if !ok {
		return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d not found in plan %s", position, planID)}
	}
	if subtask.Status != models.SubtaskFailed {
		return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d is not failed (current: %s)", position, subtask.Status)}
	}

	subtask.Status = models.SubtaskPending
	subtask.RetryCount++
	subtask.Error = nil
	subtask.StartedAt = nil
	subtask.CompletedAt = nil
	plan.Subtasks[idx] = subtask
	if err := e.plans.Save(ctx, plan, true); err != nil {
		return fmt.Errorf("resetting subtask for retry: %w", err)
	}
	e.events.Publish(ctx, "SubtaskRetried", map[string]any{"plan_id": planID, "position": position, "retry_count": subtask.RetryCount})

	return e.Execute(ctx, conversationID, planID, position, w)
}

func findSubtask(plan models.ExecutionPlan, position int) (models.Subtask, int, bool) {
	for i, st := range plan.Subtasks {
		if st.Position == position {
			return st, i, true
		}
	}
	return models.Subtask{}, -1, false
}

func buildIsolatedContext(plan models.ExecutionPlan, subtask models.Subtask) []models.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall goal: %s\n\n", plan.Goal)
	fmt.Fprintf(&b, "Your subtask: %s\n", subtask.Description)

	depResults := dependencyResults(plan, subtask)
	if len(depResults) > 0 {
		b.WriteString("\nCompleted dependency work:\n")
		for _, d := range depResults {
			fmt.Fprintf(&b, "- %s: %s\n", d.description, d.result)
		}
	}

	content := b.String()
	return []models.Message{
		{Role: models.RoleSystem, Content: ptrStr("You are executing one subtask of a larger plan, in isolation from the rest of the conversation.")},
		{Role: models.RoleUser, Content: ptrStr(content)},
	}
}

type depResult struct {
	description string
	result      string
}

func dependencyResults(plan models.ExecutionPlan, subtask models.Subtask) []depResult {
	var out []depResult
	for _, dep := range subtask.Dependencies {
		for _, st := range plan.Subtasks {
			if st.Position == dep && st.Status == models.SubtaskDone {
				result := ""
				if st.Result != nil {
					result = *st.Result
				}
				out = append(out, depResult{description: st.Description, result: result})
			}
		}
	}
	return out
}

func matchFailureSentinel(content string) bool {
	for _, s := range llmFailureSentinels {
		if strings.Contains(content, s) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func duration(start, end *time.Time) *float64 {
	if start == nil || end == nil {
		return nil
	}
	d := end.Sub(*start).Seconds()
	return &d
}

func ptrStr(s string) *string { return &s }
