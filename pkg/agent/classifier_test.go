package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type scriptedChat struct {
	reply string
	err   error
}

func (c *scriptedChat) Complete(_ context.Context, _ string, _ []ChatMessage) (string, error) {
	return c.reply, c.err
}

func TestClassifier_ParsesLLMJSONResponse(t *testing.T) {
	c := NewClassifier(&scriptedChat{reply: `{"is_atomic": false, "agent": "plan", "confidence": "high", "reason": "touches many files"}`}, "gpt-test")

	got := c.Classify(context.Background(), "refactor the entire auth subsystem")
	assert.False(t, got.IsAtomic)
	assert.Equal(t, "plan", got.Agent)
	assert.Equal(t, "high", got.Confidence)
}

func TestClassifier_StripsMarkdownFence(t *testing.T) {
	c := NewClassifier(&scriptedChat{reply: "```json\n{\"is_atomic\": true, \"agent\": \"code\", \"confidence\": \"medium\", \"reason\": \"single file edit\"}\n```"}, "gpt-test")

	got := c.Classify(context.Background(), "fix the typo in README")
	assert.True(t, got.IsAtomic)
	assert.Equal(t, "code", got.Agent)
}

func TestClassifier_FallsBackOnLLMError(t *testing.T) {
	c := NewClassifier(&scriptedChat{err: fmt.Errorf("provider unreachable")}, "gpt-test")

	got := c.Classify(context.Background(), "debug the crash in the payment service")
	assert.True(t, got.IsAtomic, "fallback always assumes atomic")
	assert.Equal(t, "debug", got.Agent)
	assert.Equal(t, "low", got.Confidence)
}

func TestClassifier_FallsBackOnUnparseableResponse(t *testing.T) {
	c := NewClassifier(&scriptedChat{reply: "not json at all"}, "gpt-test")

	got := c.Classify(context.Background(), "create a new login form")
	assert.True(t, got.IsAtomic)
	assert.Equal(t, "code", got.Agent)
}

func TestClassifier_FallsBackOnUnknownAgentName(t *testing.T) {
	c := NewClassifier(&scriptedChat{reply: `{"is_atomic": true, "agent": "architect", "confidence": "high", "reason": "??"}`}, "gpt-test")

	got := c.Classify(context.Background(), "what is dependency injection")
	assert.True(t, got.IsAtomic)
	assert.Equal(t, "explain", got.Agent)
}

func TestClassifier_NoClientConfiguredUsesKeywordFallback(t *testing.T) {
	c := NewClassifier(nil, "gpt-test")

	got := c.Classify(context.Background(), "design the architecture for the new billing module")
	assert.True(t, got.IsAtomic)
	assert.Equal(t, "plan", got.Agent)
}

func TestClassifier_FallbackDefaultsToCodeOnNoKeywordMatch(t *testing.T) {
	c := NewClassifier(nil, "gpt-test")

	got := c.Classify(context.Background(), "banana")
	assert.Equal(t, "code", got.Agent)
}
