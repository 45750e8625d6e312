// Package fsm implements the per-conversation finite-state machine that
// drives a task through classification, optional planning/approval, and
// execution, per the authoritative transition matrix.
package fsm

import "github.com/codeready-toolchain/agentrt/pkg/models"

// transitions is the total, closed transition matrix. Any (state,
// event) pair not present here is a hard error.
var transitions = map[models.FSMState]map[models.FSMEvent]models.FSMState{
	models.StateIdle: {
		models.EventReceiveMessage: models.StateClassify,
	},
	models.StateClassify: {
		models.EventIsAtomicTrue:  models.StateExecution,
		models.EventIsAtomicFalse: models.StatePlanRequired,
		models.EventClassifyError: models.StateIdle,
	},
	models.StatePlanRequired: {
		models.EventRouteToArchitect: models.StateArchitectPlanning,
	},
	models.StateArchitectPlanning: {
		models.EventPlanCreated:    models.StatePlanReview,
		models.EventPlanningFailed: models.StateErrorHandling,
	},
	models.StatePlanReview: {
		models.EventPlanApproved:             models.StatePlanExecution,
		models.EventPlanRejected:             models.StateIdle,
		models.EventPlanModificationRequested: models.StateArchitectPlanning,
	},
	models.StatePlanExecution: {
		models.EventPlanExecutionCompleted: models.StateCompleted,
		models.EventPlanExecutionFailed:    models.StateErrorHandling,
	},
	models.StateExecution: {
		models.EventAllSubtasksDone: models.StateCompleted,
		models.EventSubtaskFailed:   models.StateErrorHandling,
	},
	models.StateErrorHandling: {
		models.EventRequiresReplanning: models.StateArchitectPlanning,
		models.EventRetrySubtask:       models.StateExecution,
		models.EventPlanCancelled:      models.StateCompleted,
	},
	models.StateCompleted: {
		models.EventReset: models.StateIdle,
	},
}

// statesRequiringResetOnNewMessage are states where an inbound message
// must first go through an implicit reset, since they represent an
// in-flight interactive step a follow-up message abandons.
var statesRequiringResetOnNewMessage = map[models.FSMState]bool{
	models.StateClassify:      true,
	models.StateCompleted:     true,
	models.StateErrorHandling: true,
	models.StateExecution:     true,
	models.StatePlanReview:    true,
	models.StatePlanExecution: true,
}

// AllowedEvents lists the events valid from a given state, for error
// messages and for UI affordances.
func AllowedEvents(state models.FSMState) []models.FSMEvent {
	out := make([]models.FSMEvent, 0, len(transitions[state]))
	for e := range transitions[state] {
		out = append(out, e)
	}
	return out
}

// Next returns the destination state for (state, event), or false if
// the pair is not in the matrix.
func Next(state models.FSMState, event models.FSMEvent) (models.FSMState, bool) {
	dest, ok := transitions[state][event]
	return dest, ok
}

// RequiresResetOnNewMessage reports whether arriving at state with a
// fresh inbound message requires an implicit reset first.
func RequiresResetOnNewMessage(state models.FSMState) bool {
	return statesRequiringResetOnNewMessage[state]
}
