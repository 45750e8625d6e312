package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/plandag"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// PlanService drives an approved plan to completion, walking its
// dependency levels and delegating each subtask to a SubtaskExecutor.
type PlanService struct {
	plans      PlanRepo
	executor   *SubtaskExecutor
	events     EventPublisher
	concurrent bool
}

// NewPlanService builds a PlanService. concurrentLevels opts into
// running every subtask within a level simultaneously via errgroup;
// the default is sequential-by-insertion-order (see DESIGN.md Open
// Question decision on execution-level concurrency).
func NewPlanService(plans PlanRepo, executor *SubtaskExecutor, events EventPublisher, concurrentLevels bool) *PlanService {
	return &PlanService{plans: plans, executor: executor, events: events, concurrent: concurrentLevels}
}

// Run drives planID to completion or failure, forwarding every chunk
// from every subtask to w. Resumable: a plan already `inProgress` (a
// prior run that crashed mid-flight) picks up wherever its subtasks'
// persisted statuses say it left off.
func (s *PlanService) Run(ctx context.Context, conversationID, planID string, w *stream.Writer) error {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	if plan.Status != models.PlanStatusApproved && plan.Status != models.PlanStatusInProgress {
		return &apperrors.PlanError{Reason: fmt.Sprintf("plan %s is not approved or in progress (current: %s)", planID, plan.Status)}
	}
	if len(plan.Subtasks) == 0 {
		return &apperrors.PlanError{Reason: fmt.Sprintf("plan %s has no subtasks", planID)}
	}

	if plan.Status == models.PlanStatusApproved {
		now := time.Now().UTC()
		plan.Status = models.PlanStatusInProgress
		plan.StartedAt = &now
		if err := s.plans.Save(ctx, plan, true); err != nil {
			return fmt.Errorf("marking plan in progress: %w", err)
		}
		s.events.Publish(ctx, "PlanExecutionStarted", map[string]any{"plan_id": planID, "conversation_id": conversationID, "subtask_count": len(plan.Subtasks)})
	}

	levels, err := plandag.ExecutionLevels(plan.Subtasks)
	if err != nil {
		return s.failPlan(ctx, planID, err.Error())
	}

	for _, level := range levels {
		runOne := func(lctx context.Context, st models.Subtask) error {
			if st.Status != models.SubtaskPending {
				return nil // already done/failed from a prior resumed run
			}
			return s.executor.Execute(lctx, conversationID, planID, st.Position, w)
		}

		var runErr error
		if s.concurrent {
			runErr = plandag.RunLevelConcurrent(ctx, level, runOne)
		} else {
			runErr = plandag.RunLevelSequential(ctx, level, runOne)
		}
		if runErr != nil {
			return s.failPlan(ctx, planID, runErr.Error())
		}

		plan, err = s.plans.FindByID(ctx, planID)
		if err != nil {
			return fmt.Errorf("reloading plan after level: %w", err)
		}
		if failed, ok := firstFailedSubtask(plan); ok {
			errMsg := "subtask failed"
			if failed.Error != nil {
				errMsg = fmt.Sprintf("subtask %d failed: %s", failed.Position, *failed.Error)
			}
			return s.failPlan(ctx, planID, errMsg)
		}
	}

	return s.completePlan(ctx, planID, w)
}

func (s *PlanService) failPlan(ctx context.Context, planID, reason string) error {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("reloading plan before fail: %w", err)
	}
	if isTerminalPlanStatus(plan.Status) {
		return nil
	}
	now := time.Now().UTC()
	plan.Status = models.PlanStatusFailed
	plan.CompletedAt = &now
	if err := s.plans.Save(ctx, plan, true); err != nil {
		return fmt.Errorf("persisting plan failure: %w", err)
	}
	s.events.Publish(ctx, "PlanFailed", map[string]any{
		"plan_id": planID,
		"error":   reason,
		"completed_subtasks": countByStatus(plan, models.SubtaskDone),
		"total_subtasks":     len(plan.Subtasks),
	})
	return &apperrors.PlanError{Reason: reason}
}

func (s *PlanService) completePlan(ctx context.Context, planID string, w *stream.Writer) error {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("reloading plan before complete: %w", err)
	}
	now := time.Now().UTC()
	plan.Status = models.PlanStatusCompleted
	plan.CompletedAt = &now
	if err := s.plans.Save(ctx, plan, true); err != nil {
		return fmt.Errorf("persisting plan completion: %w", err)
	}
	s.events.Publish(ctx, "PlanCompleted", map[string]any{
		"plan_id":             planID,
		"total_subtasks":      len(plan.Subtasks),
		"successful_subtasks": countByStatus(plan, models.SubtaskDone),
	})

	return w.Emit(ctx, stream.ExecutionCompletedChunk(map[string]any{
		"plan_id":          planID,
		"status":           "completed",
		"subtask_count":    len(plan.Subtasks),
		"duration_seconds": duration(plan.StartedAt, plan.CompletedAt),
	}))
}

// Cancel transitions a non-terminal plan to cancelled.
func (s *PlanService) Cancel(ctx context.Context, planID, reason string) error {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	if isTerminalPlanStatus(plan.Status) {
		return &apperrors.PlanError{Reason: fmt.Sprintf("cannot cancel plan %s in status %s", planID, plan.Status)}
	}
	now := time.Now().UTC()
	plan.Status = models.PlanStatusCancelled
	plan.CompletedAt = &now
	if err := s.plans.Save(ctx, plan, true); err != nil {
		return fmt.Errorf("persisting plan cancellation: %w", err)
	}
	s.events.Publish(ctx, "PlanCancelled", map[string]any{
		"plan_id": planID,
		"reason":  reason,
		"completed_subtasks": countByStatus(plan, models.SubtaskDone),
		"total_subtasks":     len(plan.Subtasks),
	})
	return nil
}

func isTerminalPlanStatus(status models.PlanStatus) bool {
	return status == models.PlanStatusCompleted || status == models.PlanStatusFailed || status == models.PlanStatusCancelled
}

func firstFailedSubtask(plan models.ExecutionPlan) (models.Subtask, bool) {
	for _, st := range plan.Subtasks {
		if st.Status == models.SubtaskFailed {
			return st, true
		}
	}
	return models.Subtask{}, false
}

func countByStatus(plan models.ExecutionPlan, status models.SubtaskStatus) int {
	n := 0
	for _, st := range plan.Subtasks {
		if st.Status == status {
			n++
		}
	}
	return n
}
