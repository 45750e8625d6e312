package models

import "time"

// FSMState is a closed orchestration state. Values and the transition
// matrix they participate in are authoritative — see pkg/fsm.
type FSMState string

const (
	StateIdle               FSMState = "idle"
	StateClassify           FSMState = "classify"
	StatePlanRequired       FSMState = "planRequired"
	StateArchitectPlanning  FSMState = "architectPlanning"
	StateExecution          FSMState = "execution"
	StatePlanReview         FSMState = "planReview"
	StatePlanExecution      FSMState = "planExecution"
	StateErrorHandling      FSMState = "errorHandling"
	StateCompleted          FSMState = "completed"
)

// FSMEvent drives transitions between FSMStates.
type FSMEvent string

const (
	EventReceiveMessage            FSMEvent = "receiveMessage"
	EventIsAtomicTrue              FSMEvent = "isAtomicTrue"
	EventIsAtomicFalse             FSMEvent = "isAtomicFalse"
	EventClassifyError             FSMEvent = "classifyError"
	EventRouteToArchitect          FSMEvent = "routeToArchitect"
	EventPlanCreated               FSMEvent = "planCreated"
	EventPlanningFailed            FSMEvent = "planningFailed"
	EventPlanApproved              FSMEvent = "planApproved"
	EventPlanRejected              FSMEvent = "planRejected"
	EventPlanModificationRequested FSMEvent = "planModificationRequested"
	EventPlanExecutionCompleted    FSMEvent = "planExecutionCompleted"
	EventPlanExecutionFailed       FSMEvent = "planExecutionFailed"
	EventAllSubtasksDone           FSMEvent = "allSubtasksDone"
	EventSubtaskFailed             FSMEvent = "subtaskFailed"
	EventRequiresReplanning        FSMEvent = "requiresReplanning"
	EventRetrySubtask              FSMEvent = "retrySubtask"
	EventPlanCancelled             FSMEvent = "planCancelled"
	EventReset                     FSMEvent = "reset"
)

// FSMContext is the durable record of a conversation's current
// orchestration state plus any accumulated transition metadata.
type FSMContext struct {
	SessionID    string         `json:"session_id"`
	CurrentState FSMState       `json:"current_state"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
