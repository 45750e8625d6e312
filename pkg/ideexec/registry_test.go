package ideexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterThenResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(PendingCall{CallID: "call-1", ConversationID: "conv-1", ToolName: "read_file", RequestedAt: time.Now()})

	call, err := r.Resolve("call-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", call.ConversationID)

	_, err = r.Resolve("call-1")
	assert.Error(t, err, "resolving twice should fail")
}

func TestRegistry_ResolveUnknownCallFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("never-registered")
	assert.Error(t, err)
}

func TestRegistry_OutstandingFiltersByConversation(t *testing.T) {
	r := NewRegistry()
	r.Register(PendingCall{CallID: "call-1", ConversationID: "conv-1"})
	r.Register(PendingCall{CallID: "call-2", ConversationID: "conv-2"})

	out := r.Outstanding("conv-1")
	require.Len(t, out, 1)
	assert.Equal(t, "call-1", out[0].CallID)
}

func TestRegistry_AbandonRemovesOnlyThatConversation(t *testing.T) {
	r := NewRegistry()
	r.Register(PendingCall{CallID: "call-1", ConversationID: "conv-1"})
	r.Register(PendingCall{CallID: "call-2", ConversationID: "conv-2"})

	r.Abandon("conv-1")

	assert.Empty(t, r.Outstanding("conv-1"))
	assert.Len(t, r.Outstanding("conv-2"), 1)
}
