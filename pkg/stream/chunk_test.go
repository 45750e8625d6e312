package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallChunk_WireShape(t *testing.T) {
	c := ToolCallChunk("call-1", "write_file", map[string]any{"path": "a.py"}, true, "req-1")

	body, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "tool_call", decoded["type"])
	assert.Equal(t, "call-1", decoded["call_id"])
	assert.Equal(t, "write_file", decoded["tool_name"])
	assert.Equal(t, true, decoded["requires_approval"])
	assert.Equal(t, "req-1", decoded["approval_request_id"])
	assert.Equal(t, true, decoded["is_final"])
	assert.NotContains(t, decoded, "error")
}

func TestErrorChunk_IsAlwaysFinal(t *testing.T) {
	c := ErrorChunk(errors.New("boom"), map[string]any{"fsmState": "agentProcessing"})
	assert.True(t, c.IsFinal)
	assert.Equal(t, "boom", *c.Error)
}

func TestWriter_EmitRespectsContextCancellation(t *testing.T) {
	w := NewWriter(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// unbuffered-equivalent writer with nothing draining it must
	// observe the cancellation instead of blocking forever.
	err := w.Emit(ctx, StatusChunk("hi", nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect_PreservesProductionOrder(t *testing.T) {
	chunks := Collect(context.Background(), func(ctx context.Context, w *Writer) {
		_ = w.Emit(ctx, StatusChunk("one", nil))
		_ = w.Emit(ctx, StatusChunk("two", nil))
		_ = w.Emit(ctx, AssistantMessage("done", true))
	})

	require.Len(t, chunks, 3)
	assert.Equal(t, "one", *chunks[0].Content)
	assert.Equal(t, "two", *chunks[1].Content)
	assert.True(t, chunks[2].IsFinal)
}

func TestCollect_TimesOutIfProducerHangs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		Collect(ctx, func(ctx context.Context, w *Writer) {
			<-ctx.Done()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not respect context cancellation")
	}
}
