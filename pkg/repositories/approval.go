package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/agentrt/ent"
	"github.com/codeready-toolchain/agentrt/ent/pendingapproval"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// ApprovalRepo satisfies approval.Repo over the PendingApproval
// entity.
type ApprovalRepo struct {
	client *ent.Client
}

func NewApprovalRepo(client *ent.Client) *ApprovalRepo {
	return &ApprovalRepo{client: client}
}

func (r *ApprovalRepo) SavePending(ctx context.Context, req models.ApprovalRequest) error {
	_, err := r.client.PendingApproval.Create().
		SetID(req.ID).
		SetRequestID(req.RequestID).
		SetRequestType(string(req.RequestType)).
		SetSubject(req.Subject).
		SetSessionID(req.SessionID).
		SetDetailsJSON(req.Details).
		SetNillableReason(req.Reason).
		SetStatus(pendingapproval.Status(req.Status)).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return fmt.Errorf("repositories: approval request %s already exists: %w", req.RequestID, err)
		}
		return fmt.Errorf("repositories: save pending approval %s: %w", req.RequestID, err)
	}
	return nil
}

func (r *ApprovalRepo) GetPending(ctx context.Context, requestID string) (models.ApprovalRequest, error) {
	row, err := r.client.PendingApproval.Query().
		Where(pendingapproval.RequestIDEQ(requestID)).
		Only(ctx)
	if err != nil {
		return models.ApprovalRequest{}, fmt.Errorf("repositories: load approval %s: %w", requestID, err)
	}
	return toModelApproval(row), nil
}

func (r *ApprovalRepo) GetAllPending(ctx context.Context, sessionID string, requestType *models.RequestType) ([]models.ApprovalRequest, error) {
	q := r.client.PendingApproval.Query().
		Where(
			pendingapproval.SessionIDEQ(sessionID),
			pendingapproval.StatusEQ(pendingapproval.StatusPending),
		)
	if requestType != nil {
		q = q.Where(pendingapproval.RequestTypeEQ(string(*requestType)))
	}
	rows, err := q.Order(ent.Asc(pendingapproval.FieldCreatedAt)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: load pending approvals for %s: %w", sessionID, err)
	}
	out := make([]models.ApprovalRequest, len(rows))
	for i, row := range rows {
		out[i] = toModelApproval(row)
	}
	return out, nil
}

// ListAllPendingOlderThan returns the request IDs of every pending
// approval created before cutoff, across all sessions. Satisfies
// approval.PendingLister for the timeout sweeper, which has no single
// session to scope its query to.
func (r *ApprovalRepo) ListAllPendingOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.client.PendingApproval.Query().
		Where(
			pendingapproval.StatusEQ(pendingapproval.StatusPending),
			pendingapproval.CreatedAtLT(cutoff),
		).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: list stale pending approvals: %w", err)
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.RequestID
	}
	return out, nil
}

func (r *ApprovalRepo) UpdateStatus(ctx context.Context, requestID string, status models.ApprovalStatus, decidedAt time.Time, reason *string) error {
	row, err := r.client.PendingApproval.Query().Where(pendingapproval.RequestIDEQ(requestID)).Only(ctx)
	if err != nil {
		return fmt.Errorf("repositories: load approval %s: %w", requestID, err)
	}
	err = r.client.PendingApproval.UpdateOneID(row.ID).
		SetStatus(pendingapproval.Status(status)).
		SetDecidedAt(decidedAt).
		SetNillableDecisionReason(reason).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("repositories: update approval %s: %w", requestID, err)
	}
	return nil
}

func toModelApproval(row *ent.PendingApproval) models.ApprovalRequest {
	return models.ApprovalRequest{
		ID:             row.ID,
		RequestID:      row.RequestID,
		RequestType:    models.RequestType(row.RequestType),
		Subject:        row.Subject,
		SessionID:      row.SessionID,
		Details:        row.DetailsJSON,
		Reason:         row.Reason,
		Status:         models.ApprovalStatus(row.Status),
		CreatedAt:      row.CreatedAt,
		DecidedAt:      row.DecidedAt,
		DecisionReason: row.DecisionReason,
	}
}
