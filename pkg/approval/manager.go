package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/google/uuid"
)

// Repo is the persistence contract the manager needs. Satisfied by
// pkg/repositories.ApprovalRepository; declared here so approval stays
// importable without pulling in ent.
type Repo interface {
	SavePending(ctx context.Context, req models.ApprovalRequest) error
	GetPending(ctx context.Context, requestID string) (models.ApprovalRequest, error)
	GetAllPending(ctx context.Context, sessionID string, requestType *models.RequestType) ([]models.ApprovalRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status models.ApprovalStatus, decidedAt time.Time, reason *string) error
}

// EventPublisher is the subset of pkg/events.Bus the manager needs.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// Manager is the unified human-approval subsystem: addPending,
// getPending, getAllPending, approve, reject (spec §4.4).
type Manager struct {
	repo   Repo
	events EventPublisher
	policy *Policy
}

// NewManager wires a Manager. The approval manager is never optional
// in this runtime — every caller that can raise a request holds a
// live *Manager, never a nil-checked pointer (Open Question decision
// in DESIGN.md).
func NewManager(repo Repo, events EventPublisher, policy *Policy) *Manager {
	return &Manager{repo: repo, events: events, policy: policy}
}

// Evaluate runs the policy and, if it requires approval, persists a new
// pending request and publishes ApprovalRequested. It returns the
// decision and, when one was created, the request's ID.
func (m *Manager) Evaluate(ctx context.Context, sessionID string, requestType models.RequestType, subject string, details map[string]any) (Decision, *models.ApprovalRequest, error) {
	decision := m.policy.ShouldRequireApproval(string(requestType), subject, details)
	if !decision.RequiresApproval {
		return decision, nil, nil
	}

	req := models.ApprovalRequest{
		ID:          uuid.New().String(),
		RequestID:   uuid.New().String(),
		RequestType: requestType,
		Subject:     subject,
		SessionID:   sessionID,
		Details:     details,
		Status:      models.ApprovalPending,
		CreatedAt:   time.Now().UTC(),
	}
	if decision.Reason != "" {
		req.Reason = &decision.Reason
	}

	if err := m.repo.SavePending(ctx, req); err != nil {
		return decision, nil, fmt.Errorf("saving pending approval: %w", err)
	}
	m.events.Publish(ctx, "ApprovalRequested", map[string]any{
		"request_id": req.RequestID,
		"session_id": sessionID,
		"subject":    subject,
	})
	return decision, &req, nil
}

// GetPending returns a single pending (or decided) approval by ID.
func (m *Manager) GetPending(ctx context.Context, requestID string) (models.ApprovalRequest, error) {
	return m.repo.GetPending(ctx, requestID)
}

// GetAllPending lists approvals for a session, optionally filtered by
// request type.
func (m *Manager) GetAllPending(ctx context.Context, sessionID string, requestType *models.RequestType) ([]models.ApprovalRequest, error) {
	return m.repo.GetAllPending(ctx, sessionID, requestType)
}

// Approve resolves a pending approval positively. Idempotent against an
// already-terminal request: a second call returns an error instead of
// silently succeeding. Publishes ApprovalApproved synchronously before
// returning so a concurrent reader on a different transaction observes
// the new state immediately.
func (m *Manager) Approve(ctx context.Context, requestID string) (models.ApprovalRequest, error) {
	return m.decide(ctx, requestID, models.ApprovalApproved, "ApprovalApproved", nil)
}

// Reject resolves a pending approval negatively, optionally with a
// human-supplied reason (e.g. "new_message", "timeout").
func (m *Manager) Reject(ctx context.Context, requestID string, reason *string) (models.ApprovalRequest, error) {
	return m.decide(ctx, requestID, models.ApprovalRejected, "ApprovalRejected", reason)
}

func (m *Manager) decide(ctx context.Context, requestID string, status models.ApprovalStatus, eventType string, reason *string) (models.ApprovalRequest, error) {
	existing, err := m.repo.GetPending(ctx, requestID)
	if err != nil {
		return models.ApprovalRequest{}, err
	}
	if existing.IsTerminal() {
		return models.ApprovalRequest{}, fmt.Errorf("%w: approval %q is already %s", apperrors.ErrInvalidInput, requestID, existing.Status)
	}

	decidedAt := time.Now().UTC()
	if err := m.repo.UpdateStatus(ctx, requestID, status, decidedAt, reason); err != nil {
		return models.ApprovalRequest{}, fmt.Errorf("updating approval status: %w", err)
	}

	existing.Status = status
	existing.DecidedAt = &decidedAt
	existing.DecisionReason = reason

	m.events.Publish(ctx, eventType, map[string]any{
		"request_id": requestID,
		"session_id": existing.SessionID,
	})
	return existing, nil
}
