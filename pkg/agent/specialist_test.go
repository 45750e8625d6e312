package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/llmturn"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
	"github.com/codeready-toolchain/agentrt/pkg/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	mu       sync.Mutex
	messages map[string][]models.Message
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{messages: map[string][]models.Message{}}
}

func (f *fakeHistory) LoadMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeHistory) AppendMessage(_ context.Context, conversationID string, msg models.Message) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.Seq = len(f.messages[conversationID]) + 1
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return msg, nil
}

type recordingTurnRunner struct {
	gotFilter llmturn.ToolFilter
	gotLen    int
	err       error
}

func (r *recordingTurnRunner) Run(_ context.Context, _, _ string, history []models.Message, filter llmturn.ToolFilter, w *stream.Writer) error {
	r.gotFilter = filter
	r.gotLen = len(history)
	if r.err != nil {
		return r.err
	}
	return w.Emit(context.Background(), stream.AssistantMessage("done", true))
}

func TestSpecialistAgent_AppendsMessageAndRunsTurnWithItsFilter(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, tools.RegisterVirtualTools(reg))

	history := newFakeHistory()
	turn := &recordingTurnRunner{}
	coder, err := NewCoderAgent(history, history, turn, reg)
	require.NoError(t, err)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, coder.Process(ctx, "conv-1", "add a button", w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, 1, turn.gotLen, "the appended user message should be visible in the history passed to the turn")

	allowed := turn.gotFilter.Allowed()
	names := make(map[string]bool, len(allowed))
	for _, spec := range allowed {
		names[spec.Name] = true
	}
	assert.True(t, names[tools.WriteFile])
	assert.False(t, names[tools.ExecuteCmd], "coder should not get execute_command")
}

func TestSpecialistAgent_ResumeRunsTurnWithoutAppending(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)

	history := newFakeHistory()
	_, err = history.AppendMessage(context.Background(), "conv-1", models.Message{Role: models.RoleAssistant})
	require.NoError(t, err)
	_, err = history.AppendMessage(context.Background(), "conv-1", models.Message{Role: models.RoleTool})
	require.NoError(t, err)

	turn := &recordingTurnRunner{}
	coder, err := NewCoderAgent(history, history, turn, reg)
	require.NoError(t, err)

	chunks := stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		assert.NoError(t, coder.Resume(ctx, "conv-1", w))
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, 2, turn.gotLen, "Resume must not append a new message before running the turn")
}

func TestDebugAgent_AllowsExecuteCommand(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)

	history := newFakeHistory()
	turn := &recordingTurnRunner{}
	debugAgent, err := NewDebugAgent(history, history, turn, reg)
	require.NoError(t, err)

	stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		_ = debugAgent.Process(ctx, "conv-1", "investigate the crash", w)
	})

	names := make(map[string]bool)
	for _, spec := range turn.gotFilter.Allowed() {
		names[spec.Name] = true
	}
	assert.True(t, names[tools.ExecuteCmd])
}

func TestAskAgent_IsReadOnly(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)

	history := newFakeHistory()
	turn := &recordingTurnRunner{}
	askAgent, err := NewAskAgent(history, history, turn, reg)
	require.NoError(t, err)

	stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		_ = askAgent.Process(ctx, "conv-1", "what does this function do", w)
	})

	names := make(map[string]bool)
	for _, spec := range turn.gotFilter.Allowed() {
		names[spec.Name] = true
	}
	assert.False(t, names[tools.WriteFile])
	assert.False(t, names[tools.ExecuteCmd])
	assert.True(t, names[tools.ReadFile])
}

func TestUniversalAgent_AllowsEverything(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, tools.RegisterVirtualTools(reg))

	history := newFakeHistory()
	turn := &recordingTurnRunner{}
	universal, err := NewUniversalAgent(history, history, turn, reg)
	require.NoError(t, err)

	stream.Collect(context.Background(), func(ctx context.Context, w *stream.Writer) {
		_ = universal.Process(ctx, "conv-1", "do anything", w)
	})

	assert.Len(t, turn.gotFilter.Allowed(), len(reg.All()))
}

func TestRouter_ResolvesByName(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	history := newFakeHistory()
	turn := &recordingTurnRunner{}

	coder, err := NewCoderAgent(history, history, turn, reg)
	require.NoError(t, err)
	debugAgent, err := NewDebugAgent(history, history, turn, reg)
	require.NoError(t, err)
	askAgent, err := NewAskAgent(history, history, turn, reg)
	require.NoError(t, err)

	router := NewRouter(coder, debugAgent, askAgent)

	got, err := router.Agent("coder")
	require.NoError(t, err)
	assert.Same(t, coder, got)

	_, err = router.Agent("architect")
	assert.Error(t, err, "architect must never be resolvable as a subtask worker")
}

func TestSingleAgentRouter_AlwaysResolvesToUniversal(t *testing.T) {
	reg, err := tools.NewRegistry()
	require.NoError(t, err)
	history := newFakeHistory()
	turn := &recordingTurnRunner{}
	universal, err := NewUniversalAgent(history, history, turn, reg)
	require.NoError(t, err)

	router := NewSingleAgentRouter(universal)

	got, err := router.Agent("coder")
	require.NoError(t, err)
	assert.Same(t, universal, got)

	got, err = router.Agent("anything")
	require.NoError(t, err)
	assert.Same(t, universal, got)
}
