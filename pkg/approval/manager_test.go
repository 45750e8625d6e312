package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu      sync.Mutex
	pending map[string]models.ApprovalRequest
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{pending: make(map[string]models.ApprovalRequest)}
}

func (f *fakeRepo) SavePending(_ context.Context, req models.ApprovalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[req.RequestID] = req
	return nil
}

func (f *fakeRepo) GetPending(_ context.Context, requestID string) (models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.pending[requestID]
	if !ok {
		return models.ApprovalRequest{}, assertNotFound{}
	}
	return req, nil
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

func (f *fakeRepo) GetAllPending(_ context.Context, sessionID string, requestType *models.RequestType) ([]models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ApprovalRequest
	for _, r := range f.pending {
		if r.SessionID == sessionID && (requestType == nil || r.RequestType == *requestType) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, requestID string, status models.ApprovalStatus, decidedAt time.Time, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req := f.pending[requestID]
	req.Status = status
	req.DecidedAt = &decidedAt
	req.DecisionReason = reason
	f.pending[requestID] = req
	return nil
}

type fakeEvents struct {
	mu        sync.Mutex
	published []string
}

func (f *fakeEvents) Publish(_ context.Context, eventType string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, eventType)
}

func TestManager_EvaluateSkipsWhenNotRequired(t *testing.T) {
	repo := newFakeRepo()
	events := &fakeEvents{}
	policy, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)
	mgr := NewManager(repo, events, policy)

	_, req, err := mgr.Evaluate(context.Background(), "sess-1", models.RequestTypeTool, "read_file", nil)
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Empty(t, events.published)
}

func TestManager_EvaluateQueuesAndPublishes(t *testing.T) {
	repo := newFakeRepo()
	events := &fakeEvents{}
	policy, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)
	mgr := NewManager(repo, events, policy)

	decision, req, err := mgr.Evaluate(context.Background(), "sess-1", models.RequestTypeTool, "write_file", map[string]any{"path": "a.py"})
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.True(t, decision.RequiresApproval)
	assert.Equal(t, models.ApprovalPending, req.Status)
	assert.Equal(t, []string{"ApprovalRequested"}, events.published)
}

func TestManager_ApproveIsIdempotentAgainstTerminalState(t *testing.T) {
	repo := newFakeRepo()
	events := &fakeEvents{}
	policy, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)
	mgr := NewManager(repo, events, policy)

	_, req, err := mgr.Evaluate(context.Background(), "sess-1", models.RequestTypeTool, "write_file", nil)
	require.NoError(t, err)

	approved, err := mgr.Approve(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, approved.Status)

	_, err = mgr.Approve(context.Background(), req.RequestID)
	assert.Error(t, err, "approving an already-terminal request must fail")
}

func TestManager_RejectPublishesSynchronously(t *testing.T) {
	repo := newFakeRepo()
	events := &fakeEvents{}
	policy, err := NewPolicy(defaultPolicyConfig())
	require.NoError(t, err)
	mgr := NewManager(repo, events, policy)

	_, req, err := mgr.Evaluate(context.Background(), "sess-1", models.RequestTypePlan, "Ship the feature", nil)
	require.NoError(t, err)

	reason := "changed my mind"
	rejected, err := mgr.Reject(context.Background(), req.RequestID, &reason)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, rejected.Status)
	assert.Contains(t, events.published, "ApprovalRejected", "the event is published before Reject returns")

	stored, err := repo.GetPending(context.Background(), req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, stored.Status, "a reader on the same repo sees the terminal state immediately")
}
