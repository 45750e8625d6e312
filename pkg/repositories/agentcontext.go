package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentrt/ent"
	"github.com/codeready-toolchain/agentrt/ent/agentcontext"
	"github.com/codeready-toolchain/agentrt/ent/agentswitch"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// AgentContextRepo tracks which agent variant owns a conversation and
// the append-only handoff log backing the loop-guard. pkg/facade's
// agent-switch loop guard and the read-only
// /api/v1/system/agent-stats endpoint both consume it.
type AgentContextRepo struct {
	client *ent.Client
}

func NewAgentContextRepo(client *ent.Client) *AgentContextRepo {
	return &AgentContextRepo{client: client}
}

// GetOrCreate returns conversationID's AgentContext, creating one
// owned by initialAgent (with maxSwitches as its loop-guard ceiling)
// if none exists yet.
func (r *AgentContextRepo) GetOrCreate(ctx context.Context, conversationID, initialAgent string, maxSwitches int) (models.AgentContext, error) {
	row, err := r.client.AgentContext.Query().
		Where(agentcontext.ConversationIDEQ(conversationID)).
		Only(ctx)
	if ent.IsNotFound(err) {
		row, err = r.client.AgentContext.Create().
			SetID(uuid.New().String()).
			SetConversationID(conversationID).
			SetCurrentAgent(initialAgent).
			SetMaxSwitches(maxSwitches).
			Save(ctx)
		if err != nil {
			return models.AgentContext{}, fmt.Errorf("repositories: create agent context for %s: %w", conversationID, err)
		}
		return toModelAgentContext(row, nil), nil
	}
	if err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: load agent context for %s: %w", conversationID, err)
	}
	switches, err := r.loadSwitches(ctx, row.ID)
	if err != nil {
		return models.AgentContext{}, err
	}
	return toModelAgentContext(row, switches), nil
}

// FindBySessionID is an alias spec.md names separately from
// GetOrCreate: a read that does not create a missing context.
func (r *AgentContextRepo) FindBySessionID(ctx context.Context, conversationID string) (models.AgentContext, error) {
	row, err := r.client.AgentContext.Query().
		Where(agentcontext.ConversationIDEQ(conversationID)).
		Only(ctx)
	if err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: load agent context for %s: %w", conversationID, err)
	}
	switches, err := r.loadSwitches(ctx, row.ID)
	if err != nil {
		return models.AgentContext{}, err
	}
	return toModelAgentContext(row, switches), nil
}

// FindByAgentType returns up to limit contexts currently owned by
// agentType.
func (r *AgentContextRepo) FindByAgentType(ctx context.Context, agentType string, limit int) ([]models.AgentContext, error) {
	rows, err := r.client.AgentContext.Query().
		Where(agentcontext.CurrentAgentEQ(agentType)).
		Order(ent.Desc(agentcontext.FieldUpdatedAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: find agent contexts by type %s: %w", agentType, err)
	}
	out := make([]models.AgentContext, len(rows))
	for i, row := range rows {
		out[i] = toModelAgentContext(row, nil)
	}
	return out, nil
}

// FindWithSwitchesAbove returns up to limit contexts whose switch
// count exceeds n, surfacing conversations whose loop guard is
// getting close to tripping.
func (r *AgentContextRepo) FindWithSwitchesAbove(ctx context.Context, n, limit int) ([]models.AgentContext, error) {
	rows, err := r.client.AgentContext.Query().
		Where(agentcontext.SwitchCountGT(n)).
		Order(ent.Desc(agentcontext.FieldSwitchCount)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: find agent contexts above %d switches: %w", n, err)
	}
	out := make([]models.AgentContext, len(rows))
	for i, row := range rows {
		out[i] = toModelAgentContext(row, nil)
	}
	return out, nil
}

// GetUsageStats returns a count of conversations currently owned by
// each agent variant.
func (r *AgentContextRepo) GetUsageStats(ctx context.Context) (map[string]int, error) {
	rows, err := r.client.AgentContext.Query().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: load agent contexts for usage stats: %w", err)
	}
	stats := make(map[string]int)
	for _, row := range rows {
		stats[row.CurrentAgent]++
	}
	return stats, nil
}

// RecordSwitch appends a handoff to the log and updates the owning
// context's current agent and switch count. Callers must check
// AgentContext.CanSwitch before calling this — RecordSwitch itself
// does not enforce the loop-guard ceiling.
func (r *AgentContextRepo) RecordSwitch(ctx context.Context, conversationID, toAgent string, reason *string, confidence *float64) (models.AgentContext, error) {
	tx, err := r.client.Tx(ctx)
	if err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: begin tx: %w", err)
	}
	defer tx.Rollback()

	row, err := tx.AgentContext.Query().Where(agentcontext.ConversationIDEQ(conversationID)).Only(ctx)
	if err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: load agent context for %s: %w", conversationID, err)
	}

	_, err = tx.AgentSwitch.Create().
		SetID(uuid.New().String()).
		SetAgentContextID(row.ID).
		SetFromAgent(row.CurrentAgent).
		SetToAgent(toAgent).
		SetNillableReason(reason).
		SetNillableConfidence(confidence).
		Save(ctx)
	if err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: record agent switch for %s: %w", conversationID, err)
	}

	updated, err := tx.AgentContext.UpdateOneID(row.ID).
		SetCurrentAgent(toAgent).
		SetSwitchCount(row.SwitchCount + 1).
		Save(ctx)
	if err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: update agent context for %s: %w", conversationID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.AgentContext{}, fmt.Errorf("repositories: commit agent switch: %w", err)
	}

	switches, err := r.loadSwitches(ctx, updated.ID)
	if err != nil {
		return models.AgentContext{}, err
	}
	return toModelAgentContext(updated, switches), nil
}

func (r *AgentContextRepo) loadSwitches(ctx context.Context, agentContextID string) ([]*ent.AgentSwitch, error) {
	rows, err := r.client.AgentSwitch.Query().
		Where(agentswitch.AgentContextIDEQ(agentContextID)).
		Order(ent.Asc(agentswitch.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: load agent switches for %s: %w", agentContextID, err)
	}
	return rows, nil
}

func toModelAgentContext(row *ent.AgentContext, switches []*ent.AgentSwitch) models.AgentContext {
	out := models.AgentContext{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		CurrentAgent:   row.CurrentAgent,
		SwitchCount:    row.SwitchCount,
		MaxSwitches:    row.MaxSwitches,
		UpdatedAt:      row.UpdatedAt,
	}
	if switches != nil {
		out.Switches = make([]models.AgentSwitch, len(switches))
		for i, sw := range switches {
			out.Switches[i] = models.AgentSwitch{
				ID:         sw.ID,
				FromAgent:  sw.FromAgent,
				ToAgent:    sw.ToAgent,
				Reason:     sw.Reason,
				Confidence: sw.Confidence,
				CreatedAt:  sw.CreatedAt,
			}
		}
	}
	return out
}
