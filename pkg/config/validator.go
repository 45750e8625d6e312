package config

import (
	"fmt"
	"regexp"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over the resolved config and
// additionally checks cross-field invariants the tag language can't
// express (rule subject patterns must compile, agent names must be
// unique).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return &apperrors.ValidationError{Field: "config", Message: err.Error()}
	}

	seen := make(map[string]bool, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if seen[a.Name] {
			return &apperrors.ValidationError{Field: "agents", Message: fmt.Sprintf("duplicate agent name %q", a.Name)}
		}
		seen[a.Name] = true
	}

	for i, rule := range cfg.ApprovalPolicy.Rules {
		if rule.SubjectPattern == "" {
			return &apperrors.ValidationError{Field: fmt.Sprintf("approval_policy.rules[%d].subject_pattern", i), Message: "must not be empty"}
		}
		if _, err := regexp.Compile(rule.SubjectPattern); err != nil {
			return &apperrors.ValidationError{Field: fmt.Sprintf("approval_policy.rules[%d].subject_pattern", i), Message: fmt.Sprintf("does not compile: %v", err)}
		}
	}
	return nil
}
