package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// notifyByteLimit mirrors PostgreSQL's 8000-byte NOTIFY payload limit
// with headroom for the db_event_id injected just before send.
const notifyByteLimit = 7900

// Bus persists domain events and fans them out via pg_notify in the
// same transaction, so a reader on another connection never observes
// a NOTIFY without the matching row already committed. Every package
// importing events declares its own narrow
//
//	Publish(ctx context.Context, eventType string, payload map[string]any)
//
// interface locally; Bus satisfies all of them.
type Bus struct {
	db *sql.DB
}

// NewBus creates a Bus over the raw *sql.DB backing the ent client
// (database.Client.DB()).
func NewBus(db *sql.DB) *Bus {
	return &Bus{db: db}
}

// Publish persists and broadcasts eventType/payload. Fire-and-forget:
// callers have no error to check, so failures are logged and dropped
// rather than propagated — matching the teacher's
// PublishSessionStatus "best effort, never block the caller" stance,
// taken all the way since Publish itself returns nothing.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any) {
	conversationID, channel := routeChannel(eventType, payload)

	envelope := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		envelope[k] = v
	}
	envelope["type"] = eventType
	envelope["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	body, err := json.Marshal(envelope)
	if err != nil {
		slog.Error("failed to marshal event payload", "event_type", eventType, "error", err)
		return
	}

	if err := b.persistAndNotify(ctx, conversationID, channel, body); err != nil {
		slog.Error("failed to publish event", "event_type", eventType, "channel", channel, "error", err)
	}
}

// routeChannel derives the NOTIFY channel for an event. A payload
// carrying "conversation_id" or "session_id" (the approval package's
// name for the same concept, carried from the teacher) routes to that
// conversation's channel; approval lifecycle events with neither route
// to the shared approval-queue channel.
func routeChannel(eventType string, payload map[string]any) (conversationID, channel string) {
	if v, ok := payload["conversation_id"].(string); ok && v != "" {
		return v, ConversationChannel(v)
	}
	if v, ok := payload["session_id"].(string); ok && v != "" {
		return v, ConversationChannel(v)
	}
	if strings.HasPrefix(eventType, "Approval") {
		return "", ApprovalQueueChannel
	}
	return "", ApprovalQueueChannel
}

// persistAndNotify inserts the event row and calls pg_notify in one
// transaction — pg_notify is itself transactional, held until COMMIT.
func (b *Bus) persistAndNotify(ctx context.Context, conversationID, channel string, body []byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (conversation_id, channel, payload, created_at) VALUES (NULLIF($1, ''), $2, $3, $4) RETURNING event_id`,
		conversationID, channel, body, time.Now().UTC(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	notifyPayload, err := withDBEventID(body, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event tx: %w", err)
	}
	return nil
}

// withDBEventID injects db_event_id (for catchup position tracking)
// and truncates the result to a routing-only envelope if it would
// exceed PostgreSQL's NOTIFY payload limit.
func withDBEventID(body []byte, eventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("unmarshal event for db_event_id injection: %w", err)
	}
	m["db_event_id"] = eventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal enriched event: %w", err)
	}
	if len(enriched) <= notifyByteLimit {
		return string(enriched), nil
	}

	truncated := map[string]any{
		"type":        m["type"],
		"db_event_id": eventID,
		"truncated":   true,
	}
	if v, ok := m["conversation_id"]; ok {
		truncated["conversation_id"] = v
	}
	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("marshal truncated event: %w", err)
	}
	return string(truncBytes), nil
}

// CatchupEvent is one row returned by GetCatchupEvents.
type CatchupEvent struct {
	ID      int64
	Payload map[string]any
}

// GetCatchupEvents returns events on channel with id > sinceID, oldest
// first, capped at limit. Satisfies CatchupQuerier directly — Bus owns
// the same *sql.DB the events table lives in, so no adapter layer is
// needed here (unlike the teacher, which wraps a separate EventService
// behind events.EventServiceAdapter).
func (b *Bus) GetCatchupEvents(ctx context.Context, channel string, sinceID int, limit int) ([]CatchupEvent, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT event_id, payload FROM events WHERE channel = $1 AND event_id > $2 ORDER BY event_id ASC LIMIT $3`,
		channel, sinceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query catchup events: %w", err)
	}
	defer rows.Close()

	var out []CatchupEvent
	for rows.Next() {
		var id int64
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan catchup event: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal catchup event %d: %w", id, err)
		}
		out = append(out, CatchupEvent{ID: id, Payload: payload})
	}
	return out, rows.Err()
}

// CleanupOlderThan deletes event rows older than the given age,
// mirroring the teacher's CleanupOrphanedEvents TTL sweep. Wired to
// the same retention job as ConversationRepo.CleanupOlderThan in
// cmd/agentrt/main.go.
func (b *Bus) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)
	res, err := b.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup events rows affected: %w", err)
	}
	return int(n), nil
}
