// Package retention periodically enforces data retention policy: stale
// conversations and their cascaded rows, and every event row past its
// TTL.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/config"
)

// ConversationCleaner deletes conversations inactive for more than the
// given number of hours. Satisfied by *repositories.ConversationRepo.
type ConversationCleaner interface {
	CleanupOlderThan(ctx context.Context, hoursInactive int) (int, error)
}

// EventCleaner deletes event rows older than the given age. Satisfied
// by *events.Bus.
type EventCleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// Service runs the retention job on a ticker: all operations are
// idempotent and safe to run from multiple instances.
type Service struct {
	config        config.RetentionConfig
	conversations ConversationCleaner
	events        EventCleaner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a retention job from the given config and
// collaborators.
func NewService(cfg config.RetentionConfig, conversations ConversationCleaner, events EventCleaner) *Service {
	return &Service{config: cfg, conversations: conversations, events: events}
}

// Start launches the background cleanup loop. A second call is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("retention service started",
		"conversation_inactive_hours", s.config.ConversationInactiveHours,
		"event_ttl", s.config.EventTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.cleanupStaleConversations(ctx)
	s.cleanupOldEvents(ctx)
}

func (s *Service) cleanupStaleConversations(ctx context.Context) {
	count, err := s.conversations.CleanupOlderThan(ctx, s.config.ConversationInactiveHours)
	if err != nil {
		slog.Error("retention: conversation cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: removed stale conversations", "count", count)
	}
}

func (s *Service) cleanupOldEvents(ctx context.Context) {
	count, err := s.events.CleanupOlderThan(ctx, s.config.EventTTL)
	if err != nil {
		slog.Error("retention: event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: removed old events", "count", count)
	}
}
