package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	testdb "github.com/codeready-toolchain/agentrt/test/database"
)

func TestFSMStateRepo_GetStateAbsentReturnsFalse(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewFSMStateRepo(client.Client)

	_, found, err := repo.GetState(context.Background(), "sess-missing")
	require.NoError(t, err)
	assert.False(t, found, "absent state must report found=false, treated as idle by the caller")
}

func TestFSMStateRepo_SaveThenGetRoundTrips(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewFSMStateRepo(client.Client)
	ctx := context.Background()

	fc := models.FSMContext{
		SessionID:    "sess-1",
		CurrentState: models.StateClassify,
		Metadata:     map[string]any{"attempt": float64(1)},
	}
	require.NoError(t, repo.SaveState(ctx, fc))

	loaded, found, err := repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StateClassify, loaded.CurrentState)
	assert.Equal(t, float64(1), loaded.Metadata["attempt"])
}

func TestFSMStateRepo_SaveStateOverwritesExisting(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewFSMStateRepo(client.Client)
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, models.FSMContext{SessionID: "sess-1", CurrentState: models.StateIdle}))
	require.NoError(t, repo.SaveState(ctx, models.FSMContext{SessionID: "sess-1", CurrentState: models.StateExecution}))

	loaded, found, err := repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StateExecution, loaded.CurrentState)
}

func TestFSMStateRepo_UpdateMetadataShallowMerges(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewFSMStateRepo(client.Client)
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, models.FSMContext{
		SessionID:    "sess-1",
		CurrentState: models.StateExecution,
		Metadata:     map[string]any{"a": "1", "b": "2"},
	}))

	require.NoError(t, repo.UpdateMetadata(ctx, "sess-1", map[string]any{"b": "3", "c": "4"}))

	loaded, found, err := repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", loaded.Metadata["a"])
	assert.Equal(t, "3", loaded.Metadata["b"])
	assert.Equal(t, "4", loaded.Metadata["c"])
	assert.Equal(t, models.StateExecution, loaded.CurrentState, "metadata merge must not touch current_state")
}

func TestFSMStateRepo_DeleteState(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewFSMStateRepo(client.Client)
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, models.FSMContext{SessionID: "sess-1", CurrentState: models.StateIdle}))
	require.NoError(t, repo.DeleteState(ctx, "sess-1"))

	_, found, err := repo.GetState(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, found)
}
