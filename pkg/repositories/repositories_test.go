package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentrt/ent"
)

// createTestConversation inserts a bare Conversation row and returns
// its ID, satisfying the required conversation_id edge every other
// aggregate in this package hangs off.
func createTestConversation(t *testing.T, client *ent.Client) string {
	t.Helper()
	id := uuid.New().String()
	_, err := client.Conversation.Create().SetID(id).Save(context.Background())
	require.NoError(t, err)
	return id
}
