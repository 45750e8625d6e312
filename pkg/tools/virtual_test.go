package tools

import (
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterVirtualTools_AddsAllThreeAsVirtualMode(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, RegisterVirtualTools(reg))

	for _, name := range []string{AttemptCompletion, AskFollowupQuestion, CreatePlanTool} {
		spec, err := reg.Get(name)
		require.NoError(t, err)
		assert.Equal(t, models.ToolExecVirtual, spec.Mode)
	}
}

func TestIsVirtual(t *testing.T) {
	assert.True(t, IsVirtual(AttemptCompletion))
	assert.True(t, IsVirtual(AskFollowupQuestion))
	assert.True(t, IsVirtual(CreatePlanTool))
	assert.False(t, IsVirtual(ReadFile))
	assert.False(t, IsVirtual("nonexistent"))
}

func TestFilter_VirtualToolsAreFilterableLikeAnyOther(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, RegisterVirtualTools(reg))

	f, err := NewFilter(reg, []string{AttemptCompletion})
	require.NoError(t, err)
	require.Len(t, f.Allowed(), 1)
	assert.Equal(t, AttemptCompletion, f.Allowed()[0].Name)

	err = f.Validate(models.ToolCall{Name: AttemptCompletion, Arguments: map[string]any{"result": "done"}})
	assert.NoError(t, err)
}
