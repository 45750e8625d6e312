package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	testdb "github.com/codeready-toolchain/agentrt/test/database"
)

func TestPlanRepo_SaveThenFindByID(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewPlanRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	plan := models.ExecutionPlan{
		ID:             uuid.New().String(),
		ConversationID: convID,
		Goal:           "ship the feature",
		Status:         models.PlanStatusDraft,
		Subtasks: []models.Subtask{
			{ID: uuid.New().String(), Position: 0, Description: "write code", Agent: "coder", Dependencies: []int{}, Status: models.SubtaskPending},
			{ID: uuid.New().String(), Position: 1, Description: "test it", Agent: "debug", Dependencies: []int{0}, Status: models.SubtaskPending},
		},
	}

	require.NoError(t, repo.Save(ctx, plan, true))

	loaded, err := repo.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Goal, loaded.Goal)
	require.Len(t, loaded.Subtasks, 2)
	assert.Equal(t, "coder", loaded.Subtasks[0].Agent)
	assert.Equal(t, []int{0}, loaded.Subtasks[1].Dependencies)
}

func TestPlanRepo_SaveUpdatesExistingSubtaskStatus(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewPlanRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	subtaskID := uuid.New().String()
	plan := models.ExecutionPlan{
		ID:             uuid.New().String(),
		ConversationID: convID,
		Goal:           "do the thing",
		Status:         models.PlanStatusApproved,
		Subtasks: []models.Subtask{
			{ID: subtaskID, Position: 0, Description: "step one", Agent: "coder", Dependencies: []int{}, Status: models.SubtaskPending},
		},
	}
	require.NoError(t, repo.Save(ctx, plan, true))

	plan.Status = models.PlanStatusInProgress
	plan.Subtasks[0].Status = models.SubtaskRunning
	require.NoError(t, repo.Save(ctx, plan, true))

	loaded, err := repo.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusInProgress, loaded.Status)
	require.Len(t, loaded.Subtasks, 1)
	assert.Equal(t, models.SubtaskRunning, loaded.Subtasks[0].Status)
}

func TestPlanRepo_FindActiveForConversationPrefersNewestApproved(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewPlanRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	old := models.ExecutionPlan{ID: uuid.New().String(), ConversationID: convID, Goal: "old goal", Status: models.PlanStatusCompleted}
	require.NoError(t, repo.Save(ctx, old, true))

	active := models.ExecutionPlan{ID: uuid.New().String(), ConversationID: convID, Goal: "active goal", Status: models.PlanStatusApproved}
	require.NoError(t, repo.Save(ctx, active, true))

	found, err := repo.FindActiveForConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)
}

func TestPlanRepo_FindByStatus(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewPlanRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	require.NoError(t, repo.Save(ctx, models.ExecutionPlan{ID: uuid.New().String(), ConversationID: convID, Goal: "a", Status: models.PlanStatusFailed}, true))
	require.NoError(t, repo.Save(ctx, models.ExecutionPlan{ID: uuid.New().String(), ConversationID: convID, Goal: "b", Status: models.PlanStatusFailed}, true))
	require.NoError(t, repo.Save(ctx, models.ExecutionPlan{ID: uuid.New().String(), ConversationID: convID, Goal: "c", Status: models.PlanStatusDraft}, true))

	failed, err := repo.FindByStatus(ctx, models.PlanStatusFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}
