package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFSM struct {
	mu       sync.Mutex
	contexts map[string]models.FSMContext
}

func newFakeFSM(state models.FSMState) *fakeFSM {
	return &fakeFSM{contexts: map[string]models.FSMContext{"conv-1": {SessionID: "conv-1", CurrentState: state}}}
}

func (f *fakeFSM) GetOrCreateContext(_ context.Context, sessionID string) (models.FSMContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fc, ok := f.contexts[sessionID]; ok {
		return fc, nil
	}
	fc := models.FSMContext{SessionID: sessionID, CurrentState: models.StateIdle}
	f.contexts[sessionID] = fc
	return fc, nil
}

func (f *fakeFSM) Transition(_ context.Context, sessionID string, event models.FSMEvent, _ map[string]any) (models.FSMContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.contexts[sessionID]
	next, ok := transitionFor(cur.CurrentState, event)
	if !ok {
		return models.FSMContext{}, fmt.Errorf("invalid transition %s from %s", event, cur.CurrentState)
	}
	fc := models.FSMContext{SessionID: sessionID, CurrentState: next}
	f.contexts[sessionID] = fc
	return fc, nil
}

func (f *fakeFSM) Reset(_ context.Context, sessionID string) (models.FSMContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fc := models.FSMContext{SessionID: sessionID, CurrentState: models.StateIdle}
	f.contexts[sessionID] = fc
	return fc, nil
}

// transitionFor is a tiny local mirror of the handful of matrix edges
// these tests exercise, avoiding a dependency on pkg/fsm's table for
// test fixtures.
func transitionFor(state models.FSMState, event models.FSMEvent) (models.FSMState, bool) {
	table := map[models.FSMState]map[models.FSMEvent]models.FSMState{
		models.StateIdle:              {models.EventReceiveMessage: models.StateClassify},
		models.StateClassify:          {models.EventIsAtomicTrue: models.StateExecution, models.EventIsAtomicFalse: models.StatePlanRequired},
		models.StatePlanRequired:      {models.EventRouteToArchitect: models.StateArchitectPlanning},
		models.StateArchitectPlanning: {models.EventPlanCreated: models.StatePlanReview, models.EventPlanningFailed: models.StateErrorHandling},
		models.StatePlanReview:        {models.EventPlanApproved: models.StatePlanExecution},
	}
	next, ok := table[state][event]
	return next, ok
}

type fakePlanCreator struct {
	plan models.ExecutionPlan
	err  error
}

func (f *fakePlanCreator) CreatePlan(_ context.Context, _, _ string, _ map[string]any) (models.ExecutionPlan, error) {
	return f.plan, f.err
}

type fakeApprovalEvaluator struct {
	requires bool
	id       string
}

func (f *fakeApprovalEvaluator) Evaluate(_ context.Context, _ string, _ models.RequestType, _ string, _ map[string]any) (bool, string, error) {
	return f.requires, f.id, nil
}

func TestOrchestratorAgent_AtomicTask_EmitsSwitchAgent(t *testing.T) {
	fsmOrch := newFakeFSM(models.StateIdle)
	classifier := NewClassifier(&scriptedChat{reply: `{"is_atomic": true, "agent": "code", "confidence": "high", "reason": "single file"}`}, "gpt-test")
	o := NewOrchestratorAgent(fsmOrch, classifier, &fakePlanCreator{}, &fakeApprovalEvaluator{}, false)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, o.Process(ctx, "conv-1", "fix the typo", w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, stream.TypeSwitchAgent, chunks[0].Type)
	assert.Equal(t, "coder", *chunks[0].ToolName)
	assert.True(t, chunks[0].IsFinal)
}

func TestOrchestratorAgent_SingleAgentMode_AlwaysRoutesToUniversal(t *testing.T) {
	fsmOrch := newFakeFSM(models.StateIdle)
	o := NewOrchestratorAgent(fsmOrch, nil, &fakePlanCreator{}, &fakeApprovalEvaluator{}, true)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, o.Process(ctx, "conv-1", "design a whole new system", w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, "universal", *chunks[0].ToolName)
}

func TestOrchestratorAgent_ComplexTask_CreatesPlanAndRequestsApproval(t *testing.T) {
	fsmOrch := newFakeFSM(models.StateIdle)
	classifier := NewClassifier(&scriptedChat{reply: `{"is_atomic": false, "agent": "plan", "confidence": "high", "reason": "multi-file change"}`}, "gpt-test")
	plan := models.ExecutionPlan{ID: "plan-1", Goal: "build the thing", Subtasks: []models.Subtask{{Position: 1, Description: "do it", Agent: "coder"}}}
	o := NewOrchestratorAgent(fsmOrch, classifier, &fakePlanCreator{plan: plan}, &fakeApprovalEvaluator{requires: true, id: "req-1"}, false)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, o.Process(ctx, "conv-1", "build a whole new feature", w))
	})

	require.Len(t, chunks, 3)
	assert.Equal(t, stream.TypeStatus, chunks[0].Type)
	assert.Equal(t, stream.TypePlanCreated, chunks[1].Type)
	assert.Equal(t, stream.TypePlanApprovalRequired, chunks[2].Type)
	assert.Equal(t, "plan-1", *chunks[2].PlanID)
	assert.Equal(t, "req-1", *chunks[2].ApprovalRequestID)
	assert.True(t, chunks[2].IsFinal)
}

func TestOrchestratorAgent_ComplexTask_AutoApprovesWhenPolicyAllows(t *testing.T) {
	fsmOrch := newFakeFSM(models.StateIdle)
	classifier := NewClassifier(&scriptedChat{reply: `{"is_atomic": false, "agent": "plan", "confidence": "high", "reason": "multi-file change"}`}, "gpt-test")
	plan := models.ExecutionPlan{ID: "plan-1", Goal: "build the thing", Subtasks: []models.Subtask{{Position: 1, Description: "do it", Agent: "coder"}}}
	o := NewOrchestratorAgent(fsmOrch, classifier, &fakePlanCreator{plan: plan}, &fakeApprovalEvaluator{requires: false}, false)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, o.Process(ctx, "conv-1", "build a whole new feature", w))
	})

	require.Len(t, chunks, 3)
	assert.Equal(t, stream.TypeStatus, chunks[2].Type)
}

func TestOrchestratorAgent_ComplexTask_PlanCreationFailureEmitsError(t *testing.T) {
	fsmOrch := newFakeFSM(models.StateIdle)
	classifier := NewClassifier(&scriptedChat{reply: `{"is_atomic": false, "agent": "plan", "confidence": "high", "reason": "multi-file change"}`}, "gpt-test")
	o := NewOrchestratorAgent(fsmOrch, classifier, &fakePlanCreator{err: fmt.Errorf("llm unavailable")}, &fakeApprovalEvaluator{}, false)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, o.Process(ctx, "conv-1", "build a whole new feature", w))
	})

	require.Len(t, chunks, 2)
	assert.Equal(t, stream.TypeError, chunks[1].Type)
}

func TestOrchestratorAgent_ResetsFSMWhenStateRequiresIt(t *testing.T) {
	fsmOrch := newFakeFSM(models.StateCompleted)
	classifier := NewClassifier(&scriptedChat{reply: `{"is_atomic": true, "agent": "code", "confidence": "high", "reason": "x"}`}, "gpt-test")
	o := NewOrchestratorAgent(fsmOrch, classifier, &fakePlanCreator{}, &fakeApprovalEvaluator{}, false)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, o.Process(ctx, "conv-1", "fix the typo", w))
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, stream.TypeSwitchAgent, chunks[0].Type)
}
