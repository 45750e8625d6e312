package ideexec

import (
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/agentrt/pkg/models"
)

func TestEncodeCall_RoundTripsThroughDataPart(t *testing.T) {
	call := models.ToolCall{ID: "call-1", Name: "read_file", Arguments: map[string]any{"path": "a.py"}}
	msg := EncodeCall(call)

	require.Len(t, msg.Parts, 1)
	dp, ok := msg.Parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", dp.Data["call_id"])
	assert.Equal(t, "read_file", dp.Data["name"])
}

func TestDecodeResult_ParsesDataPart(t *testing.T) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{
		Data: map[string]any{"call_id": "call-1", "result": "file contents", "is_error": false},
	})

	result, err := DecodeResult(msg)
	require.NoError(t, err)
	assert.Equal(t, "call-1", result.CallID)
	assert.Equal(t, "file contents", result.Content)
	assert.False(t, result.IsError)
}

func TestDecodeResult_ErrorsOnMissingDataPart(t *testing.T) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "not structured"})

	_, err := DecodeResult(msg)
	assert.Error(t, err)
}

func TestDecodeResult_ErrorsOnNilMessage(t *testing.T) {
	_, err := DecodeResult(nil)
	assert.Error(t, err)
}

func TestDecodeResult_ErrorsWhenCallIDMissing(t *testing.T) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.DataPart{Data: map[string]any{"result": "x"}})

	_, err := DecodeResult(msg)
	assert.Error(t, err)
}
