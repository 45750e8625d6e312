package models

import "time"

// PlanStatus is the lifecycle state of an ExecutionPlan.
type PlanStatus string

const (
	PlanStatusDraft      PlanStatus = "draft"
	PlanStatusApproved   PlanStatus = "approved"
	PlanStatusInProgress PlanStatus = "inProgress"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusFailed     PlanStatus = "failed"
	PlanStatusCancelled  PlanStatus = "cancelled"
)

// SubtaskStatus is the lifecycle state of a single Subtask.
type SubtaskStatus string

const (
	SubtaskPending SubtaskStatus = "pending"
	SubtaskRunning SubtaskStatus = "running"
	SubtaskDone    SubtaskStatus = "done"
	SubtaskFailed  SubtaskStatus = "failed"
	SubtaskBlocked SubtaskStatus = "blocked"
)

// Subtask is one node in an ExecutionPlan's dependency DAG. Dependencies
// are positions into the owning plan's Subtasks slice, not pointers —
// the set of nodes is fixed at plan-creation time (see Design Notes on
// cyclic-reference modeling by index).
type Subtask struct {
	ID           string        `json:"id"`
	PlanID       string        `json:"plan_id"`
	Position     int           `json:"position"`
	Description  string        `json:"description"`
	Agent        string        `json:"agent"`
	Dependencies []int         `json:"dependencies"`
	Status       SubtaskStatus `json:"status"`
	Result       *string       `json:"result,omitempty"`
	Error        *string       `json:"error,omitempty"`
	RetryCount   int           `json:"retry_count"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// ExecutionPlan is a goal decomposed into an ordered, dependency-linked
// list of subtasks.
type ExecutionPlan struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Goal           string     `json:"goal"`
	Status         PlanStatus `json:"status"`
	Subtasks       []Subtask  `json:"subtasks"`
	CreatedAt      time.Time  `json:"created_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
