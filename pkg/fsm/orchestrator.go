package fsm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// Repo is the persistence contract the orchestrator needs (spec
// §4.1 FSMStateRepo), declared locally so this package stays free of
// an ent dependency.
type Repo interface {
	GetState(ctx context.Context, sessionID string) (models.FSMContext, bool, error)
	SaveState(ctx context.Context, fc models.FSMContext) error
	DeleteState(ctx context.Context, sessionID string) error
}

// Orchestrator drives one conversation's state machine. Holds a small
// in-memory cache of contexts in front of the repository, mirroring the
// Python original's get_or_create_context cache-then-restore path.
type Orchestrator struct {
	repo Repo

	mu    sync.Mutex
	cache map[string]models.FSMContext
}

// NewOrchestrator builds an Orchestrator backed by repo.
func NewOrchestrator(repo Repo) *Orchestrator {
	return &Orchestrator{repo: repo, cache: make(map[string]models.FSMContext)}
}

// GetOrCreateContext returns the cached context for sessionID, falling
// back to the repository, and finally creating a fresh idle context
// when neither has one — an absent FSMStateRepo row means idle (spec
// §4.1).
func (o *Orchestrator) GetOrCreateContext(ctx context.Context, sessionID string) (models.FSMContext, error) {
	o.mu.Lock()
	if fc, ok := o.cache[sessionID]; ok {
		o.mu.Unlock()
		return fc, nil
	}
	o.mu.Unlock()

	fc, found, err := o.repo.GetState(ctx, sessionID)
	if err != nil {
		return models.FSMContext{}, fmt.Errorf("loading fsm state: %w", err)
	}
	if !found {
		fc = models.FSMContext{
			SessionID:    sessionID,
			CurrentState: models.StateIdle,
			Metadata:     map[string]any{},
			UpdatedAt:    time.Now().UTC(),
		}
		if err := o.repo.SaveState(ctx, fc); err != nil {
			return models.FSMContext{}, fmt.Errorf("persisting new fsm state: %w", err)
		}
	}

	o.mu.Lock()
	o.cache[sessionID] = fc
	o.mu.Unlock()
	return fc, nil
}

// ValidateTransition is a dry-run check: does (state, event) exist in
// the matrix, without mutating anything.
func (o *Orchestrator) ValidateTransition(ctx context.Context, sessionID string, event models.FSMEvent) error {
	fc, err := o.GetOrCreateContext(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, ok := Next(fc.CurrentState, event); !ok {
		return &apperrors.FSMError{State: string(fc.CurrentState), Event: string(event), AllowedEvents: eventNames(AllowedEvents(fc.CurrentState))}
	}
	return nil
}

// Transition validates (state, event), merges metadata, and persists
// the result atomically before returning. Unlike the Python original,
// which logs and continues on a persistence failure, this propagates
// the error to the caller — spec §4.5 reads persistence as a hard
// requirement of a valid transition, not best-effort (see DESIGN.md).
func (o *Orchestrator) Transition(ctx context.Context, sessionID string, event models.FSMEvent, metadata map[string]any) (models.FSMContext, error) {
	fc, err := o.GetOrCreateContext(ctx, sessionID)
	if err != nil {
		return models.FSMContext{}, err
	}

	dest, ok := Next(fc.CurrentState, event)
	if !ok {
		return models.FSMContext{}, &apperrors.FSMError{State: string(fc.CurrentState), Event: string(event), AllowedEvents: eventNames(AllowedEvents(fc.CurrentState))}
	}

	merged := mergeMetadata(fc.Metadata, metadata)
	next := models.FSMContext{
		SessionID:    sessionID,
		CurrentState: dest,
		Metadata:     merged,
		UpdatedAt:    time.Now().UTC(),
	}

	if err := o.repo.SaveState(ctx, next); err != nil {
		return models.FSMContext{}, fmt.Errorf("persisting fsm transition: %w", err)
	}

	o.mu.Lock()
	o.cache[sessionID] = next
	o.mu.Unlock()
	return next, nil
}

// Reset drives a conversation back to idle, used both for an explicit
// `reset` event from completed and for the implicit reset spec §4.5
// requires before a follow-up message can re-enter classify/execution/
// planReview/errorHandling/completed (RequiresResetOnNewMessage also
// names planExecution).
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) (models.FSMContext, error) {
	fc, err := o.GetOrCreateContext(ctx, sessionID)
	if err != nil {
		return models.FSMContext{}, err
	}

	if fc.CurrentState == models.StatePlanReview {
		reason := "new_message"
		if _, err := o.Transition(ctx, sessionID, models.EventPlanRejected, map[string]any{"reason": reason}); err != nil {
			return models.FSMContext{}, err
		}
		return o.GetOrCreateContext(ctx, sessionID)
	}

	if fc.CurrentState == models.StateIdle {
		return fc, nil
	}
	if fc.CurrentState != models.StateCompleted {
		// Any other non-terminal, non-planReview state has no direct
		// reset edge in the matrix; force through completed first via
		// errorHandling's planCancelled edge is not generally valid,
		// so we persist idle directly — arriving here only happens
		// for states RequiresResetOnNewMessage names, which are the
		// ones the facade must route through this helper.
		next := models.FSMContext{SessionID: sessionID, CurrentState: models.StateIdle, Metadata: map[string]any{}, UpdatedAt: time.Now().UTC()}
		if err := o.repo.SaveState(ctx, next); err != nil {
			return models.FSMContext{}, fmt.Errorf("persisting reset: %w", err)
		}
		o.mu.Lock()
		o.cache[sessionID] = next
		o.mu.Unlock()
		return next, nil
	}
	return o.Transition(ctx, sessionID, models.EventReset, nil)
}

func mergeMetadata(base, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

func eventNames(events []models.FSMEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}
