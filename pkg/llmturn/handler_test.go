package llmturn

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

type scriptedClient struct {
	resp ChatResponse
	err  error
}

func (c *scriptedClient) ChatCompletion(_ context.Context, _ ChatRequest) (ChatResponse, error) {
	return c.resp, c.err
}

type fixedFilter struct{ specs []models.ToolSpec }

func (f fixedFilter) Allowed() []models.ToolSpec { return f.specs }

type fakeApprovals struct {
	requires bool
	id       string
}

func (f *fakeApprovals) Evaluate(_ context.Context, _ string, _ models.RequestType, _ string, _ map[string]any) (bool, string, error) {
	return f.requires, f.id, nil
}

type fakeAppender struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (f *fakeAppender) AppendMessage(_ context.Context, _ string, msg models.Message) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return msg, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	published []string
}

func (f *fakeEvents) Publish(_ context.Context, eventType string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, eventType)
}

func TestHandler_PersistsAndEmitsAssistantMessage(t *testing.T) {
	client := &scriptedClient{resp: ChatResponse{Content: "here is the answer"}}
	convos := &fakeAppender{}
	approvals := &fakeApprovals{}
	events := &fakeEvents{}
	h := NewHandler(client, convos, approvals, events, "gpt-test")

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, h.Run(ctx, "conv-1", "sess-1", nil, fixedFilter{}, w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, stream.TypeAssistantMessage, chunks[0].Type)
	assert.True(t, chunks[0].IsFinal)

	require.Len(t, convos.msgs, 1)
	assert.Equal(t, models.RoleAssistant, convos.msgs[0].Role)
	assert.Equal(t, "here is the answer", *convos.msgs[0].Content)
}

func TestHandler_ToolCall_RequiresApproval(t *testing.T) {
	client := &scriptedClient{resp: ChatResponse{ToolCalls: []ChatToolCall{
		{ID: "call-1", Name: "write_file", Arguments: map[string]any{"path": "a.py"}},
	}}}
	convos := &fakeAppender{}
	approvals := &fakeApprovals{requires: true, id: "req-1"}
	events := &fakeEvents{}
	h := NewHandler(client, convos, approvals, events, "gpt-test")

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, h.Run(ctx, "conv-1", "sess-1", nil, fixedFilter{}, w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, stream.TypeToolCall, chunks[0].Type)
	assert.True(t, *chunks[0].RequiresApproval)
	require.NotNil(t, chunks[0].ApprovalRequestID)
	assert.Equal(t, "req-1", *chunks[0].ApprovalRequestID)
	assert.True(t, chunks[0].IsFinal)

	require.Len(t, convos.msgs, 1)
	assert.Nil(t, convos.msgs[0].Content, "a tool-call message must carry empty content")
	require.Len(t, convos.msgs[0].ToolCalls, 1)
	assert.Equal(t, "write_file", convos.msgs[0].ToolCalls[0].Name)

	assert.Contains(t, events.published, "ToolExecutionRequested")
	assert.Contains(t, events.published, "ToolApprovalRequired")
}

func TestHandler_ToolCall_KeepsOnlyFirstOfMultiple(t *testing.T) {
	client := &scriptedClient{resp: ChatResponse{ToolCalls: []ChatToolCall{
		{ID: "call-1", Name: "read_file"},
		{ID: "call-2", Name: "write_file"},
	}}}
	convos := &fakeAppender{}
	approvals := &fakeApprovals{}
	h := NewHandler(client, convos, approvals, &fakeEvents{}, "gpt-test")

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, h.Run(ctx, "conv-1", "sess-1", nil, fixedFilter{}, w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, "read_file", *chunks[0].ToolName)
	require.Len(t, convos.msgs[0].ToolCalls, 1)
	assert.Equal(t, "call-1", convos.msgs[0].ToolCalls[0].ID)
}

func TestHandler_ProviderFailure_EmitsErrorAndPublishes(t *testing.T) {
	client := &scriptedClient{err: fmt.Errorf("provider unreachable")}
	convos := &fakeAppender{}
	events := &fakeEvents{}
	h := NewHandler(client, convos, &fakeApprovals{}, events, "gpt-test")

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, h.Run(ctx, "conv-1", "sess-1", nil, fixedFilter{}, w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, stream.TypeError, chunks[0].Type)
	assert.Contains(t, events.published, "RequestFailed")
	assert.Empty(t, convos.msgs, "a failed call must not persist anything")
}
