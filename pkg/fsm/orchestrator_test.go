package fsm

import (
	"context"
	"sync"
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStateRepo struct {
	mu       sync.Mutex
	states   map[string]models.FSMContext
	saveErrs map[string]error
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]models.FSMContext), saveErrs: make(map[string]error)}
}

func (f *fakeStateRepo) GetState(_ context.Context, sessionID string) (models.FSMContext, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fc, ok := f.states[sessionID]
	return fc, ok, nil
}

func (f *fakeStateRepo) SaveState(_ context.Context, fc models.FSMContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.saveErrs[fc.SessionID]; err != nil {
		return err
	}
	f.states[fc.SessionID] = fc
	return nil
}

func (f *fakeStateRepo) DeleteState(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, sessionID)
	return nil
}

func TestOrchestrator_GetOrCreateContext_DefaultsToIdle(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)

	fc, err := o.GetOrCreateContext(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, fc.CurrentState)

	stored, found, err := repo.GetState(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StateIdle, stored.CurrentState)
}

func TestOrchestrator_Transition_FollowsMatrix(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)

	fc, err := o.Transition(context.Background(), "sess-1", models.EventReceiveMessage, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateClassify, fc.CurrentState)

	fc, err = o.Transition(context.Background(), "sess-1", models.EventIsAtomicFalse, map[string]any{"goal": "ship it"})
	require.NoError(t, err)
	assert.Equal(t, models.StatePlanRequired, fc.CurrentState)
	assert.Equal(t, "ship it", fc.Metadata["goal"])
}

func TestOrchestrator_Transition_RejectsInvalidEvent(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)

	_, err := o.Transition(context.Background(), "sess-1", models.EventPlanApproved, nil)
	require.Error(t, err)
	var fsmErr *apperrors.FSMError
	assert.ErrorAs(t, err, &fsmErr)
	assert.Equal(t, string(models.StateIdle), fsmErr.State)
}

func TestOrchestrator_Transition_PropagatesPersistenceError(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)

	_, err := o.GetOrCreateContext(context.Background(), "sess-1")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.saveErrs["sess-1"] = assertSaveFailed{}
	repo.mu.Unlock()

	_, err = o.Transition(context.Background(), "sess-1", models.EventReceiveMessage, nil)
	require.Error(t, err, "a persistence failure must surface to the caller, not be swallowed")
}

type assertSaveFailed struct{}

func (assertSaveFailed) Error() string { return "save failed" }

func TestOrchestrator_Reset_FromPlanReviewGoesThroughRejection(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)

	ctx := context.Background()
	_, err := o.Transition(ctx, "sess-1", models.EventReceiveMessage, nil)
	require.NoError(t, err)
	_, err = o.Transition(ctx, "sess-1", models.EventIsAtomicFalse, nil)
	require.NoError(t, err)
	_, err = o.Transition(ctx, "sess-1", models.EventRouteToArchitect, nil)
	require.NoError(t, err)
	_, err = o.Transition(ctx, "sess-1", models.EventPlanCreated, nil)
	require.NoError(t, err)

	fc, err := o.Reset(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, fc.CurrentState)
}

func TestOrchestrator_Reset_FromCompletedUsesResetEvent(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, models.FSMContext{SessionID: "sess-1", CurrentState: models.StateCompleted, Metadata: map[string]any{}}))

	fc, err := o.Reset(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, fc.CurrentState)
}

func TestOrchestrator_ValidateTransition_DoesNotMutate(t *testing.T) {
	repo := newFakeStateRepo()
	o := NewOrchestrator(repo)
	ctx := context.Background()

	err := o.ValidateTransition(ctx, "sess-1", models.EventPlanApproved)
	require.Error(t, err)

	fc, err := o.GetOrCreateContext(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, fc.CurrentState)
}
