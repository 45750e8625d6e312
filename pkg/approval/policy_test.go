package approval

import (
	"testing"

	"github.com/codeready-toolchain/agentrt/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPolicyConfig() config.ApprovalPolicyConfig {
	return config.ApprovalPolicyConfig{
		Enabled:                 true,
		DefaultRequiresApproval: false,
		Rules: []config.ApprovalRule{
			{RequestType: "tool", SubjectPattern: "^write_file$", RequiresApproval: true, Reason: "mutates the filesystem"},
			{RequestType: "tool", SubjectPattern: "^read_file$", RequiresApproval: false},
			{RequestType: "plan", SubjectPattern: ".*", RequiresApproval: true},
			{
				RequestType:      "tool",
				SubjectPattern:   "^execute_command$",
				RequiresApproval: true,
				Conditions:       config.ApprovalRuleCondition{"risk_score_gt": float64(5)},
			},
		},
	}
}

func TestPolicy_MatchesByTypeAndSubject(t *testing.T) {
	p, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)

	d := p.ShouldRequireApproval("tool", "write_file", nil)
	assert.True(t, d.RequiresApproval)

	d = p.ShouldRequireApproval("tool", "read_file", nil)
	assert.False(t, d.RequiresApproval)
}

func TestPolicy_AllPlansRequireApproval(t *testing.T) {
	p, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)

	d := p.ShouldRequireApproval("plan", "Refactor the auth module", nil)
	assert.True(t, d.RequiresApproval)
}

func TestPolicy_UnmatchedFallsThroughToDefault(t *testing.T) {
	p, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)

	d := p.ShouldRequireApproval("tool", "list_files", nil)
	assert.False(t, d.RequiresApproval)
}

func TestPolicy_DisabledPolicyAlwaysAllows(t *testing.T) {
	cfg := defaultPolicyConfig()
	cfg.Enabled = false
	p, err := NewPolicy(cfg)
	require.NoError(t, err)

	d := p.ShouldRequireApproval("tool", "write_file", nil)
	assert.False(t, d.RequiresApproval)
}

func TestPolicy_ConditionDSL_Gt(t *testing.T) {
	p, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)

	d := p.ShouldRequireApproval("tool", "execute_command", map[string]any{"risk_score": float64(9)})
	assert.True(t, d.RequiresApproval)

	d = p.ShouldRequireApproval("tool", "execute_command", map[string]any{"risk_score": float64(1)})
	assert.False(t, d.RequiresApproval, "condition fails, rule doesn't match, falls through to default")
}

func TestPolicy_ConditionDSL_MissingDetailFieldFailsMatch(t *testing.T) {
	p, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)

	d := p.ShouldRequireApproval("tool", "execute_command", map[string]any{})
	assert.False(t, d.RequiresApproval)
}
