package tools

import (
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/invopop/jsonschema"
)

// Virtual tool names. None of these ever reach the IDE executor — a
// call to one is a signal the dispatching layer interprets directly
// rather than a unit of work to run (spec §5).
const (
	AttemptCompletion   = "attempt_completion"
	AskFollowupQuestion = "ask_followup_question"
	CreatePlanTool      = "create_plan"
)

// AttemptCompletionArgs is the argument shape for attempt_completion:
// the agent declares its turn (or subtask) finished.
type AttemptCompletionArgs struct {
	Result string `json:"result" jsonschema:"required,description=Summary of the completed work"`
}

// AskFollowupQuestionArgs is the argument shape for
// ask_followup_question: the agent needs clarification before it can
// continue.
type AskFollowupQuestionArgs struct {
	Question string   `json:"question" jsonschema:"required"`
	Options  []string `json:"options,omitempty"`
}

// CreatePlanArgs is the argument shape for create_plan: an agent other
// than the orchestrator decides the task needs decomposition after all.
type CreatePlanArgs struct {
	Goal string `json:"goal" jsonschema:"required,description=What the plan should accomplish"`
}

var virtualArgShapes = map[string]any{
	AttemptCompletion:   AttemptCompletionArgs{},
	AskFollowupQuestion: AskFollowupQuestionArgs{},
	CreatePlanTool:      CreatePlanArgs{},
}

var virtualDescriptions = map[string]string{
	AttemptCompletion:   "Signal that the current task is complete and report its result.",
	AskFollowupQuestion: "Ask the user a clarifying question before continuing.",
	CreatePlanTool:      "Request that the task be decomposed into an execution plan.",
}

// RegisterVirtualTools adds the fixed set of virtual tools to registry.
// cmd/agentrt does not call it, so the runtime's registry holds only the
// built-in IDE tools, and no package outside this one calls IsVirtual to
// intercept a virtual call.
func RegisterVirtualTools(registry *Registry) error {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	for name, shape := range virtualArgShapes {
		schema := reflector.Reflect(shape)
		raw, err := json.Marshal(schema)
		if err != nil {
			return fmt.Errorf("generating schema for %s: %w", name, err)
		}
		registry.RegisterLocal(models.ToolSpec{
			Name:          name,
			Description:   virtualDescriptions[name],
			ParametersRaw: raw,
			Mode:          models.ToolExecVirtual,
			Permission:    "readonly",
		})
	}
	return nil
}

// IsVirtual reports whether name is one of the fixed virtual tools,
// i.e. a signal for the dispatching layer rather than executable work.
func IsVirtual(name string) bool {
	switch name {
	case AttemptCompletion, AskFollowupQuestion, CreatePlanTool:
		return true
	default:
		return false
	}
}
