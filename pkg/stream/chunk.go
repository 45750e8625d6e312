// Package stream implements the Stream Chunk Protocol: a single tagged
// envelope type that flows from the orchestration core to transport
// callers over an asynchronous stream.
package stream

// ChunkType is the tag discriminating a Chunk's populated fields.
type ChunkType string

const (
	TypeAssistantMessage    ChunkType = "assistant_message"
	TypeToolCall            ChunkType = "tool_call"
	TypeToolResult          ChunkType = "tool_result"
	TypeStatus              ChunkType = "status"
	TypeSwitchAgent         ChunkType = "switch_agent"
	TypeError               ChunkType = "error"
	TypePlanCreated         ChunkType = "plan_created"
	TypePlanApprovalRequired ChunkType = "plan_approval_required"
	TypePlanRejected        ChunkType = "plan_rejected"
	TypePlanCompleted       ChunkType = "plan_completed"
	TypeSubtaskCompleted    ChunkType = "subtask_completed"
	TypeExecutionCompleted  ChunkType = "execution_completed"
)

// Chunk is the flat wire-shape struct for every StreamChunk variant,
// matching spec's JSON shape directly rather than a Go interface per
// tag — the teacher's events payloads follow the same flat-struct
// convention (see payloads.go).
type Chunk struct {
	Type ChunkType `json:"type"`

	Content *string `json:"content,omitempty"`
	Token   *string `json:"token,omitempty"`

	ToolName          *string        `json:"tool_name,omitempty"`
	Arguments         map[string]any `json:"arguments,omitempty"`
	CallID            *string        `json:"call_id,omitempty"`
	ToolCallID        *string        `json:"tool_call_id,omitempty"`
	RequiresApproval  *bool          `json:"requires_approval,omitempty"`

	ApprovalRequestID *string        `json:"approval_request_id,omitempty"`
	PlanID            *string        `json:"plan_id,omitempty"`
	PlanSummary       map[string]any `json:"plan_summary,omitempty"`

	Error *string `json:"error,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
	IsFinal  bool           `json:"is_final,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// AssistantMessage builds an assistant_message chunk; isFinal marks it
// terminal.
func AssistantMessage(content string, isFinal bool) Chunk {
	return Chunk{Type: TypeAssistantMessage, Content: ptr(content), IsFinal: isFinal}
}

// ToolCallChunk builds a tool_call chunk. Per spec's at-most-one-tool-
// call-per-turn discipline this is always terminal for the turn.
// approvalRequestID is empty unless requiresApproval is true, in which
// case it's the ID a later tool-decision call must reference.
func ToolCallChunk(callID, toolName string, arguments map[string]any, requiresApproval bool, approvalRequestID string) Chunk {
	c := Chunk{
		Type:             TypeToolCall,
		CallID:           ptr(callID),
		ToolName:         ptr(toolName),
		Arguments:        arguments,
		RequiresApproval: ptr(requiresApproval),
		IsFinal:          true,
	}
	if approvalRequestID != "" {
		c.ApprovalRequestID = ptr(approvalRequestID)
	}
	return c
}

// ToolResultChunk reports a completed tool execution back into the
// stream (e.g. after an IDE tool posts its result).
func ToolResultChunk(callID, toolCallID, content string, isError bool) Chunk {
	c := Chunk{
		Type:       TypeToolResult,
		CallID:     ptr(callID),
		ToolCallID: ptr(toolCallID),
		Content:    ptr(content),
	}
	if isError {
		c.Error = ptr(content)
	}
	return c
}

// SwitchAgentChunk announces the orchestrator's routing decision.
func SwitchAgentChunk(toAgent string, metadata map[string]any) Chunk {
	return Chunk{Type: TypeSwitchAgent, ToolName: ptr(toAgent), Metadata: metadata, IsFinal: true}
}

// ErrorChunk builds the single terminal error chunk every failing path
// must emit exactly once.
func ErrorChunk(err error, metadata map[string]any) Chunk {
	return Chunk{Type: TypeError, Error: ptr(err.Error()), Metadata: metadata, IsFinal: true}
}

// PlanApprovalRequiredChunk pauses a turn pending a human decision on a
// freshly drafted plan.
func PlanApprovalRequiredChunk(approvalRequestID, planID string, summary map[string]any) Chunk {
	return Chunk{
		Type:              TypePlanApprovalRequired,
		ApprovalRequestID: ptr(approvalRequestID),
		PlanID:            ptr(planID),
		PlanSummary:       summary,
		IsFinal:           true,
	}
}

// StatusChunk carries a free-form progress update; the chunk is never
// terminal.
func StatusChunk(content string, metadata map[string]any) Chunk {
	return Chunk{Type: TypeStatus, Content: ptr(content), Metadata: metadata}
}

// PlanCreatedChunk announces a freshly drafted plan, before the
// approval gate.
func PlanCreatedChunk(planID string, metadata map[string]any) Chunk {
	return Chunk{Type: TypePlanCreated, PlanID: ptr(planID), Metadata: metadata}
}

// PlanRejectedChunk reports a human or architect rejection of a plan.
func PlanRejectedChunk(planID string, metadata map[string]any) Chunk {
	return Chunk{Type: TypePlanRejected, PlanID: ptr(planID), Metadata: metadata, IsFinal: true}
}

// SubtaskCompletedChunk reports one subtask's terminal outcome within
// a running plan.
func SubtaskCompletedChunk(planID string, metadata map[string]any) Chunk {
	return Chunk{Type: TypeSubtaskCompleted, PlanID: ptr(planID), Metadata: metadata}
}

// PlanCompletedChunk is the terminal chunk for a successfully
// completed plan.
func PlanCompletedChunk(planID string, metadata map[string]any) Chunk {
	return Chunk{Type: TypePlanCompleted, PlanID: ptr(planID), Metadata: metadata, IsFinal: true}
}

// ExecutionCompletedChunk closes out either an atomic execution or a
// multi-subtask plan execution, carrying summary counts in metadata.
func ExecutionCompletedChunk(metadata map[string]any) Chunk {
	return Chunk{Type: TypeExecutionCompleted, Metadata: metadata, IsFinal: true}
}
