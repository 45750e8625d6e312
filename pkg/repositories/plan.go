package repositories

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/agentrt/ent"
	"github.com/codeready-toolchain/agentrt/ent/executionplan"
	"github.com/codeready-toolchain/agentrt/ent/subtask"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// PlanRepo satisfies both execution.PlanRepo and agent.PlanRepo — the
// two declare structurally identical interfaces over the same
// ExecutionPlan aggregate, so one adapter serves both call sites.
type PlanRepo struct {
	client *ent.Client
}

func NewPlanRepo(client *ent.Client) *PlanRepo {
	return &PlanRepo{client: client}
}

// FindByID loads a plan and its subtasks, ordered by DAG position.
func (r *PlanRepo) FindByID(ctx context.Context, planID string) (models.ExecutionPlan, error) {
	plan, err := r.client.ExecutionPlan.Query().Where(executionplan.IDEQ(planID)).Only(ctx)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("repositories: load plan %s: %w", planID, err)
	}
	subtasks, err := r.client.Subtask.Query().
		Where(subtask.PlanIDEQ(planID)).
		Order(ent.Asc(subtask.FieldPosition)).
		All(ctx)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("repositories: load subtasks of %s: %w", planID, err)
	}
	return toModelPlan(plan, subtasks), nil
}

// FindActiveForConversation returns the newest plan in {approved,
// inProgress} for conversationID, or ent.IsNotFound if none.
func (r *PlanRepo) FindActiveForConversation(ctx context.Context, conversationID string) (models.ExecutionPlan, error) {
	plan, err := r.client.ExecutionPlan.Query().
		Where(
			executionplan.ConversationIDEQ(conversationID),
			executionplan.StatusIn(executionplan.StatusApproved, executionplan.StatusInProgress),
		).
		Order(ent.Desc(executionplan.FieldCreatedAt)).
		First(ctx)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("repositories: find active plan for %s: %w", conversationID, err)
	}
	return r.FindByID(ctx, plan.ID)
}

// FindAllForConversation returns conversationID's plans, newest first.
func (r *PlanRepo) FindAllForConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.ExecutionPlan, error) {
	rows, err := r.client.ExecutionPlan.Query().
		Where(executionplan.ConversationIDEQ(conversationID)).
		Order(ent.Desc(executionplan.FieldCreatedAt)).
		Limit(limit).
		Offset(offset).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: find plans for %s: %w", conversationID, err)
	}
	out := make([]models.ExecutionPlan, len(rows))
	for i, row := range rows {
		full, err := r.FindByID(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		out[i] = full
	}
	return out, nil
}

// FindByStatus returns every plan currently in status, across all
// conversations.
func (r *PlanRepo) FindByStatus(ctx context.Context, status models.PlanStatus) ([]models.ExecutionPlan, error) {
	rows, err := r.client.ExecutionPlan.Query().
		Where(executionplan.StatusEQ(executionplan.Status(status))).
		Order(ent.Desc(executionplan.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: find plans by status %s: %w", status, err)
	}
	out := make([]models.ExecutionPlan, len(rows))
	for i, row := range rows {
		full, err := r.FindByID(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		out[i] = full
	}
	return out, nil
}

// Save upserts plan and its full subtask list. commit controls
// whether the write runs in its own transaction that is committed
// immediately (true — the normal case, a standalone plan mutation) or
// whether the caller is already inside one and this call should run
// without opening a nested transaction (false — ent has no nested
// transactions, so in that case Save uses the plain client instead of
// starting its own tx, trusting the caller's surrounding tx/ctx).
func (r *PlanRepo) Save(ctx context.Context, plan models.ExecutionPlan, commit bool) error {
	if !commit {
		return savePlan(ctx, r.client, plan)
	}

	tx, err := r.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("repositories: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := savePlan(ctx, tx.Client(), plan); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repositories: commit plan save: %w", err)
	}
	return nil
}

func savePlan(ctx context.Context, client *ent.Client, plan models.ExecutionPlan) error {
	if _, err := client.ExecutionPlan.Get(ctx, plan.ID); ent.IsNotFound(err) {
		_, err := client.ExecutionPlan.Create().
			SetID(plan.ID).
			SetConversationID(plan.ConversationID).
			SetGoal(plan.Goal).
			SetStatus(executionplan.Status(plan.Status)).
			SetNillableApprovedAt(plan.ApprovedAt).
			SetNillableStartedAt(plan.StartedAt).
			SetNillableCompletedAt(plan.CompletedAt).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("repositories: create plan %s: %w", plan.ID, err)
		}
	} else if err != nil {
		return fmt.Errorf("repositories: load plan %s: %w", plan.ID, err)
	} else {
		err := client.ExecutionPlan.UpdateOneID(plan.ID).
			SetStatus(executionplan.Status(plan.Status)).
			SetNillableApprovedAt(plan.ApprovedAt).
			SetNillableStartedAt(plan.StartedAt).
			SetNillableCompletedAt(plan.CompletedAt).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("repositories: update plan %s: %w", plan.ID, err)
		}
	}

	for _, st := range plan.Subtasks {
		if err := saveSubtask(ctx, client, plan.ID, st); err != nil {
			return err
		}
	}
	return nil
}

func saveSubtask(ctx context.Context, client *ent.Client, planID string, st models.Subtask) error {
	if _, err := client.Subtask.Get(ctx, st.ID); ent.IsNotFound(err) {
		_, err := client.Subtask.Create().
			SetID(st.ID).
			SetPlanID(planID).
			SetPosition(st.Position).
			SetDescription(st.Description).
			SetAgent(st.Agent).
			SetDependencies(st.Dependencies).
			SetStatus(subtask.Status(st.Status)).
			SetNillableResult(st.Result).
			SetNillableError(st.Error).
			SetRetryCount(st.RetryCount).
			SetNillableStartedAt(st.StartedAt).
			SetNillableCompletedAt(st.CompletedAt).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("repositories: create subtask %s: %w", st.ID, err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("repositories: load subtask %s: %w", st.ID, err)
	}

	err := client.Subtask.UpdateOneID(st.ID).
		SetStatus(subtask.Status(st.Status)).
		SetNillableResult(st.Result).
		SetNillableError(st.Error).
		SetRetryCount(st.RetryCount).
		SetNillableStartedAt(st.StartedAt).
		SetNillableCompletedAt(st.CompletedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("repositories: update subtask %s: %w", st.ID, err)
	}
	return nil
}

func toModelPlan(plan *ent.ExecutionPlan, subtasks []*ent.Subtask) models.ExecutionPlan {
	out := models.ExecutionPlan{
		ID:             plan.ID,
		ConversationID: plan.ConversationID,
		Goal:           plan.Goal,
		Status:         models.PlanStatus(plan.Status),
		CreatedAt:      plan.CreatedAt,
		ApprovedAt:     plan.ApprovedAt,
		StartedAt:      plan.StartedAt,
		CompletedAt:    plan.CompletedAt,
		Subtasks:       make([]models.Subtask, len(subtasks)),
	}
	for i, st := range subtasks {
		out.Subtasks[i] = models.Subtask{
			ID:           st.ID,
			PlanID:       st.PlanID,
			Position:     st.Position,
			Description:  st.Description,
			Agent:        st.Agent,
			Dependencies: st.Dependencies,
			Status:       models.SubtaskStatus(st.Status),
			Result:       st.Result,
			Error:        st.Error,
			RetryCount:   st.RetryCount,
			StartedAt:    st.StartedAt,
			CompletedAt:  st.CompletedAt,
		}
	}
	return out
}
