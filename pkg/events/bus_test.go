package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteChannel_PrefersConversationID(t *testing.T) {
	convID, channel := routeChannel("SubtaskStarted", map[string]any{"conversation_id": "conv-1", "position": 0})
	assert.Equal(t, "conv-1", convID)
	assert.Equal(t, "conversation:conv-1", channel)
}

func TestRouteChannel_FallsBackToSessionID(t *testing.T) {
	convID, channel := routeChannel("ApprovalRequested", map[string]any{"session_id": "conv-2"})
	assert.Equal(t, "conv-2", convID)
	assert.Equal(t, "conversation:conv-2", channel)
}

func TestRouteChannel_ApprovalEventWithoutIDsGoesToQueue(t *testing.T) {
	convID, channel := routeChannel("ApprovalExpired", map[string]any{})
	assert.Empty(t, convID)
	assert.Equal(t, ApprovalQueueChannel, channel)
}

func TestWithDBEventID_InjectsID(t *testing.T) {
	body, err := json.Marshal(map[string]any{"type": "SubtaskStarted", "conversation_id": "conv-1"})
	require.NoError(t, err)

	out, err := withDBEventID(body, 42)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, float64(42), decoded["db_event_id"])
	assert.Equal(t, "conv-1", decoded["conversation_id"])
}

func TestWithDBEventID_TruncatesOversizedPayload(t *testing.T) {
	huge := map[string]any{
		"type":            "SubtaskCompleted",
		"conversation_id": "conv-1",
		"blob":            strings.Repeat("x", notifyByteLimit+500),
	}
	body, err := json.Marshal(huge)
	require.NoError(t, err)

	out, err := withDBEventID(body, 7)
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), notifyByteLimit+200)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, true, decoded["truncated"])
	assert.Equal(t, "conv-1", decoded["conversation_id"])
	assert.NotContains(t, decoded, "blob")
}
