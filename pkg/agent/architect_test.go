package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchitectPlanRepo struct {
	mu    sync.Mutex
	plans map[string]models.ExecutionPlan
}

func newFakeArchitectPlanRepo() *fakeArchitectPlanRepo {
	return &fakeArchitectPlanRepo{plans: map[string]models.ExecutionPlan{}}
}

func (f *fakeArchitectPlanRepo) FindByID(_ context.Context, planID string) (models.ExecutionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[planID]
	if !ok {
		return models.ExecutionPlan{}, fmt.Errorf("plan %s not found", planID)
	}
	return p, nil
}

func (f *fakeArchitectPlanRepo) Save(_ context.Context, plan models.ExecutionPlan, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plans[plan.ID] = plan
	return nil
}

func TestArchitect_CreatePlan_ParsesJSONFence(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	llm := &scriptedChat{reply: "```json\n" + `{
		"reasoning": "two steps",
		"subtasks": [
			{"description": "write the handler", "agent": "coder", "dependencies": [], "estimated_time": "10 min"},
			{"description": "verify it works", "agent": "debug", "dependencies": [0], "estimated_time": "5 min"}
		]
	}` + "\n```"}
	a := NewArchitect(repo, llm, "gpt-test")

	plan, err := a.CreatePlan(context.Background(), "conv-1", "add an endpoint", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusDraft, plan.Status)
	require.Len(t, plan.Subtasks, 2)
	assert.Equal(t, 1, plan.Subtasks[0].Position)
	assert.Equal(t, 2, plan.Subtasks[1].Position)
	assert.Equal(t, []int{1}, plan.Subtasks[1].Dependencies)

	saved, err := repo.FindByID(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, saved.ID)
}

func TestArchitect_CreatePlan_RejectsSubtaskAssignedToArchitect(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	llm := &scriptedChat{reply: `{"subtasks": [{"description": "plan more", "agent": "architect"}]}`}
	a := NewArchitect(repo, llm, "gpt-test")

	_, err := a.CreatePlan(context.Background(), "conv-1", "do something", nil)
	assert.Error(t, err)
}

func TestArchitect_CreatePlan_RejectsSelfDependency(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	llm := &scriptedChat{reply: `{"subtasks": [
		{"description": "a", "agent": "coder", "dependencies": [0]}
	]}`}
	a := NewArchitect(repo, llm, "gpt-test")

	_, err := a.CreatePlan(context.Background(), "conv-1", "do something", nil)
	assert.Error(t, err, "subtask 0 cannot depend on itself or a future index")
}

func TestArchitect_CreatePlan_InvalidDependencyIndexMessageMatchesScenario(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	llm := &scriptedChat{reply: `{"subtasks": [
		{"description": "a", "agent": "coder", "dependencies": [1]},
		{"description": "b", "agent": "coder", "dependencies": [0]}
	]}`}
	a := NewArchitect(repo, llm, "gpt-test")

	_, err := a.CreatePlan(context.Background(), "conv-1", "do something", nil)
	require.Error(t, err)
	assert.Equal(t, "Subtask 0 has invalid dependency index: 1", err.Error())
}

func TestArchitect_CreatePlan_RejectsInvalidAgent(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	llm := &scriptedChat{reply: `{"subtasks": [{"description": "a", "agent": "orchestrator"}]}`}
	a := NewArchitect(repo, llm, "gpt-test")

	_, err := a.CreatePlan(context.Background(), "conv-1", "do something", nil)
	assert.Error(t, err)
}

func TestArchitect_CreatePlan_FallsBackToHeuristicOnLLMError(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	llm := &scriptedChat{err: fmt.Errorf("provider down")}
	a := NewArchitect(repo, llm, "gpt-test")

	plan, err := a.CreatePlan(context.Background(), "conv-1", "create the login form and test it", nil)
	require.NoError(t, err)
	require.Len(t, plan.Subtasks, 2)
	assert.Equal(t, "coder", plan.Subtasks[0].Agent)
	assert.Equal(t, "debug", plan.Subtasks[1].Agent)
	assert.Equal(t, []int{1}, plan.Subtasks[1].Dependencies)
}

func TestArchitect_CreatePlan_NoLLMConfiguredUsesHeuristic(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	a := NewArchitect(repo, nil, "gpt-test")

	plan, err := a.CreatePlan(context.Background(), "conv-1", "investigate the outage", nil)
	require.NoError(t, err)
	require.Len(t, plan.Subtasks, 1)
	assert.Equal(t, "coder", plan.Subtasks[0].Agent)
}

func TestArchitect_Replan_RegeneratesSubtasksKeepingPlanID(t *testing.T) {
	repo := newFakeArchitectPlanRepo()
	original := models.ExecutionPlan{ID: "plan-1", ConversationID: "conv-1", Goal: "build the thing", Status: models.PlanStatusApproved}
	_ = repo.Save(context.Background(), original, true)

	llm := &scriptedChat{reply: `{"subtasks": [{"description": "redo it smaller", "agent": "coder", "dependencies": []}]}`}
	a := NewArchitect(repo, llm, "gpt-test")

	plan, err := a.Replan(context.Background(), "plan-1", "split into smaller steps", nil)
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)
	assert.Equal(t, models.PlanStatusDraft, plan.Status)
	require.Len(t, plan.Subtasks, 1)
	assert.Equal(t, "plan-1", plan.Subtasks[0].PlanID)
}
