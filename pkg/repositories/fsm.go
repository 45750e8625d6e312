package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentrt/ent"
	"github.com/codeready-toolchain/agentrt/ent/fsmstate"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// FSMStateRepo satisfies fsm.Repo over the FSMState entity, one row
// per conversation (session_id is unique).
type FSMStateRepo struct {
	client *ent.Client
}

func NewFSMStateRepo(client *ent.Client) *FSMStateRepo {
	return &FSMStateRepo{client: client}
}

func (r *FSMStateRepo) GetState(ctx context.Context, sessionID string) (models.FSMContext, bool, error) {
	row, err := r.client.FSMState.Query().Where(fsmstate.SessionIDEQ(sessionID)).Only(ctx)
	if ent.IsNotFound(err) {
		return models.FSMContext{}, false, nil
	}
	if err != nil {
		return models.FSMContext{}, false, fmt.Errorf("repositories: load fsm state for %s: %w", sessionID, err)
	}
	return models.FSMContext{
		SessionID:    row.SessionID,
		CurrentState: models.FSMState(row.CurrentState),
		Metadata:     row.ContextMetadata,
		UpdatedAt:    row.UpdatedAt,
	}, true, nil
}

func (r *FSMStateRepo) SaveState(ctx context.Context, fc models.FSMContext) error {
	existing, err := r.client.FSMState.Query().Where(fsmstate.SessionIDEQ(fc.SessionID)).Only(ctx)
	if ent.IsNotFound(err) {
		_, err := r.client.FSMState.Create().
			SetID(uuid.New().String()).
			SetSessionID(fc.SessionID).
			SetCurrentState(string(fc.CurrentState)).
			SetContextMetadata(fc.Metadata).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("repositories: create fsm state for %s: %w", fc.SessionID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("repositories: load fsm state for %s: %w", fc.SessionID, err)
	}

	err = r.client.FSMState.UpdateOneID(existing.ID).
		SetCurrentState(string(fc.CurrentState)).
		SetContextMetadata(fc.Metadata).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("repositories: update fsm state for %s: %w", fc.SessionID, err)
	}
	return nil
}

// UpdateMetadata shallow-merges patch into sessionID's stored
// metadata, leaving current_state untouched.
func (r *FSMStateRepo) UpdateMetadata(ctx context.Context, sessionID string, patch map[string]any) error {
	row, err := r.client.FSMState.Query().Where(fsmstate.SessionIDEQ(sessionID)).Only(ctx)
	if err != nil {
		return fmt.Errorf("repositories: load fsm state for %s: %w", sessionID, err)
	}
	merged := make(map[string]any, len(row.ContextMetadata)+len(patch))
	for k, v := range row.ContextMetadata {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	if err := r.client.FSMState.UpdateOneID(row.ID).SetContextMetadata(merged).Exec(ctx); err != nil {
		return fmt.Errorf("repositories: merge fsm metadata for %s: %w", sessionID, err)
	}
	return nil
}

func (r *FSMStateRepo) DeleteState(ctx context.Context, sessionID string) error {
	_, err := r.client.FSMState.Delete().Where(fsmstate.SessionIDEQ(sessionID)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("repositories: delete fsm state for %s: %w", sessionID, err)
	}
	return nil
}
