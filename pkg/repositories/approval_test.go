package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	testdb "github.com/codeready-toolchain/agentrt/test/database"
)

func TestApprovalRepo_SaveAndGetPending(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewApprovalRepo(client.Client)
	ctx := context.Background()

	req := models.ApprovalRequest{
		ID:          uuid.New().String(),
		RequestID:   uuid.New().String(),
		RequestType: models.RequestTypeTool,
		Subject:     "delete_file",
		SessionID:   "sess-1",
		Details:     map[string]any{"path": "/tmp/x"},
		Status:      models.ApprovalPending,
	}
	require.NoError(t, repo.SavePending(ctx, req))

	loaded, err := repo.GetPending(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, req.Subject, loaded.Subject)
	assert.Equal(t, "/tmp/x", loaded.Details["path"])
	assert.Equal(t, models.ApprovalPending, loaded.Status)
}

func TestApprovalRepo_GetAllPendingFiltersBySessionAndType(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewApprovalRepo(client.Client)
	ctx := context.Background()

	mk := func(sessionID string, rt models.RequestType) models.ApprovalRequest {
		return models.ApprovalRequest{
			ID: uuid.New().String(), RequestID: uuid.New().String(),
			RequestType: rt, Subject: "x", SessionID: sessionID,
			Details: map[string]any{}, Status: models.ApprovalPending,
		}
	}
	require.NoError(t, repo.SavePending(ctx, mk("sess-1", models.RequestTypeTool)))
	require.NoError(t, repo.SavePending(ctx, mk("sess-1", models.RequestTypePlan)))
	require.NoError(t, repo.SavePending(ctx, mk("sess-2", models.RequestTypeTool)))

	all, err := repo.GetAllPending(ctx, "sess-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	toolType := models.RequestTypeTool
	filtered, err := repo.GetAllPending(ctx, "sess-1", &toolType)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, models.RequestTypeTool, filtered[0].RequestType)
}

func TestApprovalRepo_UpdateStatusMarksTerminal(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewApprovalRepo(client.Client)
	ctx := context.Background()

	req := models.ApprovalRequest{
		ID: uuid.New().String(), RequestID: uuid.New().String(),
		RequestType: models.RequestTypeTool, Subject: "x", SessionID: "sess-1",
		Details: map[string]any{}, Status: models.ApprovalPending,
	}
	require.NoError(t, repo.SavePending(ctx, req))

	reason := "looked safe"
	require.NoError(t, repo.UpdateStatus(ctx, req.RequestID, models.ApprovalApproved, time.Now(), &reason))

	loaded, err := repo.GetPending(ctx, req.RequestID)
	require.NoError(t, err)
	assert.True(t, loaded.IsTerminal())
	assert.Equal(t, models.ApprovalApproved, loaded.Status)
	require.NotNil(t, loaded.DecisionReason)
	assert.Equal(t, reason, *loaded.DecisionReason)
}

func TestApprovalRepo_ListAllPendingOlderThanCrossesSessions(t *testing.T) {
	client := testdb.NewTestClient(t)
	repo := NewApprovalRepo(client.Client)
	ctx := context.Background()

	stale, err := client.Client.PendingApproval.Create().
		SetID(uuid.New().String()).
		SetRequestID("req-stale").
		SetRequestType(string(models.RequestTypeTool)).
		SetSubject("x").
		SetSessionID("sess-1").
		SetDetailsJSON(map[string]any{}).
		SetCreatedAt(time.Now().Add(-time.Hour)).
		Save(ctx)
	require.NoError(t, err)
	_ = stale

	require.NoError(t, repo.SavePending(ctx, models.ApprovalRequest{
		ID: uuid.New().String(), RequestID: "req-fresh",
		RequestType: models.RequestTypeTool, Subject: "x", SessionID: "sess-2",
		Details: map[string]any{}, Status: models.ApprovalPending,
	}))

	ids, err := repo.ListAllPendingOlderThan(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-stale"}, ids)
}
