package approval

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically reclaims pending approvals that have sat longer
// than the configured timeout, rejecting them with reason "timeout" so
// a suspended turn is not stuck forever. Grounded in the teacher's
// pkg/cleanup periodic-sweep shape.
type Sweeper struct {
	manager  *Manager
	lister   PendingLister
	timeout  time.Duration
	interval time.Duration
	notifier ExpiredNotifier
	events   EventPublisher
}

// ExpiredNotifier is the narrow surface sweepernotify.Client satisfies;
// kept local so this package does not import a gRPC client for its core
// logic. Nil disables sidecar notification entirely.
type ExpiredNotifier interface {
	NotifyExpired(ctx context.Context, requestID, kind, reason string) error
}

// PendingLister is the narrow read surface the sweeper needs to find
// candidates across all sessions, independent of Manager's
// session-scoped GetAllPending.
type PendingLister interface {
	ListAllPendingOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// NewSweeper builds a Sweeper. timeout and interval come from the
// approval policy config.
func NewSweeper(manager *Manager, lister PendingLister, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{manager: manager, lister: lister, timeout: timeout, interval: interval}
}

// WithNotifier attaches a sidecar notifier, returning s for chaining at
// construction time in cmd/agentrt/main.go.
func (s *Sweeper) WithNotifier(n ExpiredNotifier) *Sweeper {
	s.notifier = n
	return s
}

// WithEvents attaches the event bus so reclaimed approvals publish
// ApprovalExpired, independent of the ApprovalRejected the manager
// itself publishes on every decision.
func (s *Sweeper) WithEvents(events EventPublisher) *Sweeper {
	s.events = events
	return s
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single reclaim pass immediately, independent of the
// ticker — exported so tests (and any future manual-trigger endpoint)
// can force a pass deterministically instead of racing Run's interval.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.timeout)
	ids, err := s.lister.ListAllPendingOlderThan(ctx, cutoff)
	if err != nil {
		slog.Warn("approval sweep: listing stale pending approvals failed", "error", err)
		return
	}
	reason := "timeout"
	for _, id := range ids {
		req, err := s.manager.Reject(ctx, id, &reason)
		if err != nil {
			slog.Warn("approval sweep: failed to reclaim approval", "request_id", id, "error", err)
			continue
		}
		if s.events != nil {
			s.events.Publish(ctx, "ApprovalExpired", map[string]any{
				"request_id": req.RequestID,
				"session_id": req.SessionID,
				"kind":       string(req.RequestType),
			})
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyExpired(ctx, req.RequestID, string(req.RequestType), reason); err != nil {
				slog.Warn("approval sweep: sidecar notify failed", "request_id", id, "error", err)
			}
		}
	}
}
