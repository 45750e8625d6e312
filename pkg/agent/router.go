package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// Agent is the worker contract every specialist variant satisfies.
// Its Process method is identical in shape to pkg/execution.Agent,
// declared locally so this package never imports pkg/execution (it
// would be a cycle: execution already depends on agent implementations
// through AgentRouter). Resume has no execution.Agent counterpart —
// subtasks never pause mid-run for tool approval, only the top-level
// conversation does (spec §4.12's tool-result resume flow).
type Agent interface {
	Process(ctx context.Context, conversationID, message string, w *stream.Writer) error
	// Resume re-enters the agent's next LLM turn against the
	// conversation's current history without appending a new user
	// message. Used after a tool result has already been appended by
	// the caller, to continue the turn the tool call suspended.
	Resume(ctx context.Context, conversationID string, w *stream.Writer) error
}

// Router resolves a subtask's agent name to its worker, satisfying
// pkg/execution.AgentRouter. The orchestrator and architect are
// deliberately absent: a subtask can never be assigned to either
// (validateAnalysis enforces this at plan-creation time).
type Router struct {
	coder     Agent
	debug     Agent
	ask       Agent
	universal Agent
	single    bool
}

// NewRouter builds a multi-agent Router. Use NewSingleAgentRouter for
// single-agent mode instead.
func NewRouter(coder, debug, ask Agent) *Router {
	return &Router{coder: coder, debug: debug, ask: ask}
}

// NewSingleAgentRouter builds a Router that resolves every name to the
// same universal worker, matching single-agent mode's collapsed
// registry (spec §4.10).
func NewSingleAgentRouter(universal Agent) *Router {
	return &Router{universal: universal, single: true}
}

// Agent resolves name to its worker.
func (r *Router) Agent(name string) (Agent, error) {
	if r.single {
		return r.universal, nil
	}
	switch Name(name) {
	case Coder:
		return r.coder, nil
	case Debug:
		return r.debug, nil
	case Ask:
		return r.ask, nil
	default:
		return nil, fmt.Errorf("no agent registered for %q", name)
	}
}
