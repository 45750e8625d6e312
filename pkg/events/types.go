// Package events is the domain event bus: every package that mutates
// orchestration state calls Publish with a plain event-type string and
// a payload map. Bus persists the event and fans it out via Postgres
// NOTIFY in one transaction; ConnectionManager/NotifyListener deliver
// it to WebSocket subscribers, including across replicas of this
// process.
package events

// Domain event types published across the orchestration packages.
// These are not a closed enum enforced anywhere — callers pass the
// string literal directly to Publish — but are named here once so
// every publish site and every test agree on the spelling.
const (
	EventApprovalRequested = "ApprovalRequested"
	EventApprovalApproved  = "ApprovalApproved"
	EventApprovalRejected  = "ApprovalRejected"
	EventApprovalExpired   = "ApprovalExpired"

	EventPlanExecutionStarted = "PlanExecutionStarted"
	EventPlanCompleted        = "PlanCompleted"
	EventPlanFailed           = "PlanFailed"
	EventPlanCancelled        = "PlanCancelled"

	EventSubtaskStarted   = "SubtaskStarted"
	EventSubtaskCompleted = "SubtaskCompleted"
	EventSubtaskFailed    = "SubtaskFailed"
	EventSubtaskRetried   = "SubtaskRetried"

	EventRequestFailed          = "RequestFailed"
	EventToolExecutionRequested = "ToolExecutionRequested"
	EventToolApprovalRequired   = "ToolApprovalRequired"
)

// ApprovalQueueChannel is the shared channel for events whose payload
// names neither a conversation_id nor a session_id — the approval-queue
// live view (SPEC_FULL.md §2 domain stack) subscribes here. Approval
// lifecycle events that carry a session_id go to that conversation's
// channel instead.
const ApprovalQueueChannel = "approvals"

// ConversationChannel returns the NOTIFY/WebSocket channel name for a
// single conversation's events (stream chunks excluded — those travel
// over the HTTP chunk stream, not this bus).
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

// ClientMessage is the JSON shape for client -> server WebSocket
// messages on the live-view channel.
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`
	LastEventID *int   `json:"last_event_id,omitempty"`
}
