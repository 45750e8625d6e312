// Package approval implements the rule-based approval policy and the
// pending-approval manager that queues and resolves human decisions.
package approval

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/agentrt/pkg/config"
)

// Decision is the policy's verdict on one request.
type Decision struct {
	RequiresApproval bool
	Reason           string
}

// Policy evaluates the rule list from config against a request.
type Policy struct {
	cfg     config.ApprovalPolicyConfig
	regexes []*regexp.Regexp
}

// NewPolicy compiles every rule's subject pattern once up front.
func NewPolicy(cfg config.ApprovalPolicyConfig) (*Policy, error) {
	p := &Policy{cfg: cfg, regexes: make([]*regexp.Regexp, len(cfg.Rules))}
	for i, rule := range cfg.Rules {
		re, err := regexp.Compile(rule.SubjectPattern)
		if err != nil {
			return nil, err
		}
		p.regexes[i] = re
	}
	return p, nil
}

// ShouldRequireApproval evaluates the policy for one request. Rules are
// matched in order; the first matching rule wins. If no rule matches,
// DefaultRequiresApproval applies. A globally disabled policy always
// resolves to "no approval".
func (p *Policy) ShouldRequireApproval(requestType, subject string, details map[string]any) Decision {
	if !p.cfg.Enabled {
		return Decision{RequiresApproval: false, Reason: "policy disabled"}
	}

	for i, rule := range p.cfg.Rules {
		if rule.RequestType != requestType {
			continue
		}
		if !p.regexes[i].MatchString(subject) {
			continue
		}
		if !checkConditions(rule.Conditions, details) {
			continue
		}
		return Decision{RequiresApproval: rule.RequiresApproval, Reason: rule.Reason}
	}

	return Decision{RequiresApproval: p.cfg.DefaultRequiresApproval, Reason: "default policy"}
}

// checkConditions evaluates the `_gt`/`_lt`/`_eq` condition DSL: every
// condition must hold for the rule to match.
func checkConditions(conditions config.ApprovalRuleCondition, details map[string]any) bool {
	for key, want := range conditions {
		field, op, ok := splitSuffix(key)
		if !ok {
			continue
		}
		got, present := details[field]
		if !present {
			return false
		}
		if !evalCondition(op, got, want) {
			return false
		}
	}
	return true
}

func splitSuffix(key string) (field, op string, ok bool) {
	switch {
	case strings.HasSuffix(key, "_gt"):
		return strings.TrimSuffix(key, "_gt"), "gt", true
	case strings.HasSuffix(key, "_lt"):
		return strings.TrimSuffix(key, "_lt"), "lt", true
	case strings.HasSuffix(key, "_eq"):
		return strings.TrimSuffix(key, "_eq"), "eq", true
	default:
		return "", "", false
	}
}

func evalCondition(op string, got, want any) bool {
	if op == "eq" {
		return got == want
	}
	g, ok1 := toFloat(got)
	w, ok2 := toFloat(want)
	if !ok1 || !ok2 {
		return false
	}
	if op == "gt" {
		return g > w
	}
	return g < w
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
