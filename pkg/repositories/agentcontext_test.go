package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/codeready-toolchain/agentrt/test/database"
)

func TestAgentContextRepo_GetOrCreateCreatesOnFirstCall(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewAgentContextRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	ac, err := repo.GetOrCreate(ctx, convID, "orchestrator", 25)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", ac.CurrentAgent)
	assert.Equal(t, 0, ac.SwitchCount)
	assert.True(t, ac.CanSwitch())

	again, err := repo.GetOrCreate(ctx, convID, "coder", 25)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", again.CurrentAgent, "second call must not recreate with a different initial agent")
}

func TestAgentContextRepo_RecordSwitchIncrementsCountAndLogs(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewAgentContextRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	_, err := repo.GetOrCreate(ctx, convID, "orchestrator", 25)
	require.NoError(t, err)

	reason := "needs a coder"
	confidence := 0.9
	updated, err := repo.RecordSwitch(ctx, convID, "coder", &reason, &confidence)
	require.NoError(t, err)
	assert.Equal(t, "coder", updated.CurrentAgent)
	assert.Equal(t, 1, updated.SwitchCount)
	require.Len(t, updated.Switches, 1)
	assert.Equal(t, "orchestrator", updated.Switches[0].FromAgent)
	assert.Equal(t, "coder", updated.Switches[0].ToAgent)
}

func TestAgentContextRepo_CanSwitchTripsAtCeiling(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewAgentContextRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	_, err := repo.GetOrCreate(ctx, convID, "orchestrator", 1)
	require.NoError(t, err)

	updated, err := repo.RecordSwitch(ctx, convID, "coder", nil, nil)
	require.NoError(t, err)
	assert.False(t, updated.CanSwitch(), "switch_count equals max_switches, loop guard must trip")
}

func TestAgentContextRepo_GetUsageStatsCountsByAgent(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewAgentContextRepo(client.Client)
	ctx := context.Background()

	conv1 := createTestConversation(t, client.Client)
	conv2 := createTestConversation(t, client.Client)
	_, err := repo.GetOrCreate(ctx, conv1, "coder", 25)
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, conv2, "coder", 25)
	require.NoError(t, err)

	stats, err := repo.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["coder"])
}

func TestAgentContextRepo_FindWithSwitchesAbove(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewAgentContextRepo(client.Client)
	ctx := context.Background()
	convID := createTestConversation(t, client.Client)

	_, err := repo.GetOrCreate(ctx, convID, "orchestrator", 25)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := repo.RecordSwitch(ctx, convID, "coder", nil, nil)
		require.NoError(t, err)
	}

	above, err := repo.FindWithSwitchesAbove(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, above, 1)
	assert.Equal(t, 3, above[0].SwitchCount)
}
