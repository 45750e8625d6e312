// Package apperrors holds the error taxonomy shared across the runtime:
// sentinel errors for common repository/service failures plus typed
// errors that carry structured detail for the API layer.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the requested aggregate does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a create collided with an existing aggregate.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput means the caller supplied a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConcurrentModification means an update lost a race with another writer.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrApprovalRequired means the operation is blocked on a pending approval.
	ErrApprovalRequired = errors.New("approval required")
	// ErrLocked means the conversation lock could not be acquired.
	ErrLocked = errors.New("conversation locked")
)

// ValidationError reports a single malformed field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FSMError reports an invalid state transition attempt.
type FSMError struct {
	State         string
	Event         string
	AllowedEvents []string
}

func (e *FSMError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q (allowed: %v)", e.Event, e.State, e.AllowedEvents)
}

// PlanError reports a structurally invalid execution plan.
type PlanError struct {
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}

// DependencyIndexError reports a subtask whose dependency does not
// resolve to an earlier subtask in the plan. Its message matches the
// scenario text verbatim ("Subtask %d has invalid dependency index: %d"),
// not wrapped with PlanError's "invalid plan: " prefix.
type DependencyIndexError struct {
	Subtask int
	Index   int
}

func (e *DependencyIndexError) Error() string {
	return fmt.Sprintf("Subtask %d has invalid dependency index: %d", e.Subtask, e.Index)
}

// AgentSwitchError reports a rejected handoff: switching to the agent
// already active, or exceeding a conversation's switch-count ceiling.
type AgentSwitchError struct {
	ConversationID string
	ToAgent        string
	Reason         string
}

func (e *AgentSwitchError) Error() string {
	return fmt.Sprintf("cannot switch conversation %s to agent %q: %s", e.ConversationID, e.ToAgent, e.Reason)
}

// ToolError reports a tool-execution failure surfaced back to the LLM turn.
type ToolError struct {
	ToolName string
	Cause    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}
