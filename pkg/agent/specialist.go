package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/llmturn"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
	"github.com/codeready-toolchain/agentrt/pkg/tools"
)

// ConversationHistory loads the message list a specialist agent turn
// runs against. The session ID equals the conversation ID throughout —
// there is one FSM/approval session per conversation.
type ConversationHistory interface {
	LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

// TurnRunner is the narrow contract a specialist agent drives one
// message through. Satisfied by *llmturn.Handler.
type TurnRunner interface {
	Run(ctx context.Context, conversationID, sessionID string, history []models.Message, filter llmturn.ToolFilter, w *stream.Writer) error
}

// specialistAgent wraps one llmturn turn behind a fixed tool allow-
// list — the shape every executing agent variant (coder, debug, ask,
// universal) shares; only the name and filter differ (spec §4.10).
// The orchestrator and architect are not specialistAgents: they never
// execute a turn, only route or plan.
type specialistAgent struct {
	name    Name
	history ConversationHistory
	convos  llmturn.ConversationAppender
	turn    TurnRunner
	filter  *tools.Filter
}

func newSpecialistAgent(name Name, history ConversationHistory, convos llmturn.ConversationAppender, turn TurnRunner, filter *tools.Filter) *specialistAgent {
	return &specialistAgent{name: name, history: history, convos: convos, turn: turn, filter: filter}
}

// Process appends message as a user turn, then runs one LLM turn
// restricted to this agent's tool allow-list. Satisfies
// pkg/execution.Agent.
func (a *specialistAgent) Process(ctx context.Context, conversationID, message string, w *stream.Writer) error {
	if _, err := a.convos.AppendMessage(ctx, conversationID, models.Message{Role: models.RoleUser, Content: strPtr(message)}); err != nil {
		return fmt.Errorf("persisting %s agent's inbound message: %w", a.name, err)
	}

	history, err := a.history.LoadMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation history for %s agent: %w", a.name, err)
	}

	return a.turn.Run(ctx, conversationID, conversationID, history, a.filter, w)
}

// Resume re-runs this agent's turn against the conversation's current
// history, without appending anything first. The caller is expected to
// have already appended a tool-role message pairing a result to the
// toolCallId the prior turn suspended on. Satisfies pkg/agent.Agent.
func (a *specialistAgent) Resume(ctx context.Context, conversationID string, w *stream.Writer) error {
	history, err := a.history.LoadMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation history to resume %s agent: %w", a.name, err)
	}
	return a.turn.Run(ctx, conversationID, conversationID, history, a.filter, w)
}

func strPtr(s string) *string { return &s }

// CoderAgent implements the coder specialist: read, search and
// file-mutation tools, no execute_command and no virtual planning tool
// (only the orchestrator/architect create plans).
type CoderAgent struct{ *specialistAgent }

// NewCoderAgent builds the coder variant.
func NewCoderAgent(history ConversationHistory, convos llmturn.ConversationAppender, turn TurnRunner, registry *tools.Registry) (*CoderAgent, error) {
	filter, err := tools.NewFilter(registry, []string{
		tools.ReadFile, tools.WriteFile, tools.ListFiles, tools.CreateDir, tools.SearchInCode,
		tools.AttemptCompletion, tools.AskFollowupQuestion,
	})
	if err != nil {
		return nil, fmt.Errorf("building coder agent filter: %w", err)
	}
	return &CoderAgent{newSpecialistAgent(Coder, history, convos, turn, filter)}, nil
}

// DebugAgent implements the debug specialist: read, search, and
// execute tools for investigation, plus file writes for applying a fix.
type DebugAgent struct{ *specialistAgent }

// NewDebugAgent builds the debug variant.
func NewDebugAgent(history ConversationHistory, convos llmturn.ConversationAppender, turn TurnRunner, registry *tools.Registry) (*DebugAgent, error) {
	filter, err := tools.NewFilter(registry, []string{
		tools.ReadFile, tools.WriteFile, tools.ListFiles, tools.SearchInCode, tools.ExecuteCmd,
		tools.AttemptCompletion, tools.AskFollowupQuestion,
	})
	if err != nil {
		return nil, fmt.Errorf("building debug agent filter: %w", err)
	}
	return &DebugAgent{newSpecialistAgent(Debug, history, convos, turn, filter)}, nil
}

// AskAgent implements the ask specialist: read-only tools, for
// answering questions and explaining code without mutating anything.
type AskAgent struct{ *specialistAgent }

// NewAskAgent builds the ask variant.
func NewAskAgent(history ConversationHistory, convos llmturn.ConversationAppender, turn TurnRunner, registry *tools.Registry) (*AskAgent, error) {
	filter, err := tools.NewFilter(registry, []string{
		tools.ReadFile, tools.ListFiles, tools.SearchInCode,
		tools.AttemptCompletion, tools.AskFollowupQuestion,
	})
	if err != nil {
		return nil, fmt.Errorf("building ask agent filter: %w", err)
	}
	return &AskAgent{newSpecialistAgent(Ask, history, convos, turn, filter)}, nil
}

// UniversalAgent implements the single-agent-mode variant: every tool
// in the registry it is given (spec §4.10's single-agent mode).
// create_plan is among them only when tools.RegisterVirtualTools has
// been applied to that registry, which cmd/agentrt does not do.
type UniversalAgent struct{ *specialistAgent }

// NewUniversalAgent builds the universal variant with an unrestricted
// allow-list (nil means "every registered tool", per tools.NewFilter).
func NewUniversalAgent(history ConversationHistory, convos llmturn.ConversationAppender, turn TurnRunner, registry *tools.Registry) (*UniversalAgent, error) {
	filter, err := tools.NewFilter(registry, nil)
	if err != nil {
		return nil, fmt.Errorf("building universal agent filter: %w", err)
	}
	return &UniversalAgent{newSpecialistAgent(Universal, history, convos, turn, filter)}, nil
}
