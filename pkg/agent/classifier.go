package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// classificationPrompt is the exact strict-JSON classification prompt,
// carried over from the routing system this runtime generalizes.
const classificationPrompt = `Classify the task strictly.

Definitions:

A task is ATOMIC only if ALL conditions are met:
- Single clear step
- Can be completed by ONE agent
- Does NOT require studying or exploring an existing project
- Does NOT involve building an application or system
- Does NOT require architectural or design decisions
- Does NOT involve multiple components or files

If ANY condition is false, the task is NON-ATOMIC.

Routing rules:
- NON-ATOMIC tasks MUST be routed to "plan" (Architect)
- ATOMIC tasks may be routed to "code", "debug", or "explain"

Respond with JSON ONLY:

{
  "is_atomic": true | false,
  "agent": "code | plan | debug | explain",
  "confidence": "high | medium | low",
  "reason": "short explanation"
}

Task: %s
`

// Classification is the classifier's verdict on one inbound message.
type Classification struct {
	IsAtomic   bool   `json:"is_atomic"`
	Agent      string `json:"agent"`
	Confidence string `json:"confidence"`
	Reason     string `json:"reason"`
}

var validClassifierAgents = map[string]bool{"code": true, "plan": true, "debug": true, "explain": true}

// Classifier decides whether an inbound message is a single atomic
// step or a complex task that must route through planning.
type Classifier struct {
	llm   ChatClient
	model string
}

// NewClassifier builds a Classifier. A nil llm always falls back to
// keyword matching.
func NewClassifier(llm ChatClient, model string) *Classifier {
	return &Classifier{llm: llm, model: model}
}

// Classify never fails: on any LLM or parse error it degrades to a
// conservative keyword-matching rule and logs a warning (spec §4.10,
// §7 "parse failures in classifier/planner outputs degrade to a
// documented fallback").
func (c *Classifier) Classify(ctx context.Context, message string) Classification {
	if c.llm == nil {
		return fallbackClassify(message, "no LLM client configured")
	}

	content, err := c.llm.Complete(ctx, c.model, []ChatMessage{
		{Role: "system", Content: "You are a precise task router."},
		{Role: "user", Content: fmt.Sprintf(classificationPrompt, message)},
	})
	if err != nil {
		slog.Warn("classifier LLM call failed, falling back to keyword classification", "error", err)
		return fallbackClassify(message, err.Error())
	}

	cl, err := parseClassification(content)
	if err != nil {
		slog.Warn("classifier response failed to parse, falling back to keyword classification", "error", err)
		return fallbackClassify(message, err.Error())
	}
	return cl
}

func parseClassification(content string) (Classification, error) {
	var cl Classification
	if err := json.Unmarshal([]byte(extractJSON(content)), &cl); err != nil {
		return Classification{}, fmt.Errorf("parsing classification JSON: %w", err)
	}
	if !validClassifierAgents[cl.Agent] {
		return Classification{}, fmt.Errorf("classification named unknown agent %q", cl.Agent)
	}
	if cl.Confidence == "" {
		cl.Confidence = "medium"
	}
	return cl, nil
}

// fallbackClassify mirrors the keyword heuristic the original routing
// system falls back to on any classification failure: it always
// assumes the task is atomic (cause is never a signal about task
// complexity, only about the LLM path failing).
func fallbackClassify(message, cause string) Classification {
	lower := strings.ToLower(message)

	agent := "code"
	switch {
	case containsAny(lower, "create", "write", "implement", "fix", "code", "refactor", "modify"):
		agent = "code"
	case containsAny(lower, "design", "architecture", "plan", "spec", "blueprint"):
		agent = "plan"
	case containsAny(lower, "debug", "error", "bug", "problem", "why", "investigate", "crash"):
		agent = "debug"
	case containsAny(lower, "explain", "what is", "how does", "help", "understand"):
		agent = "explain"
	}

	return Classification{
		IsAtomic:   true,
		Agent:      agent,
		Confidence: "low",
		Reason:     fmt.Sprintf("fallback classification due to error: %s", cause),
	}
}
