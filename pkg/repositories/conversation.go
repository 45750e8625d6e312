// Package repositories adapts the generated ent client onto the
// narrow, package-local repository interfaces pkg/fsm, pkg/approval,
// pkg/execution, pkg/llmturn and pkg/agent each declare for
// themselves. Outside this package only pkg/database (which opens the
// client) and the test database helpers import ent directly.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/agentrt/ent"
	"github.com/codeready-toolchain/agentrt/ent/conversation"
	"github.com/codeready-toolchain/agentrt/ent/conversationsnapshot"
	"github.com/codeready-toolchain/agentrt/ent/message"
	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
)

// ConversationRepo satisfies llmturn.ConversationAppender,
// agent.ConversationHistory and execution.ConversationStore off one
// ent client: every conversation-scoped concern (appending, loading,
// context-isolation snapshot/restore) is one aggregate's concern.
type ConversationRepo struct {
	client *ent.Client
}

func NewConversationRepo(client *ent.Client) *ConversationRepo {
	return &ConversationRepo{client: client}
}

// AppendMessage assigns the next sequence number, persists msg, and
// trims the oldest messages beyond the conversation's sliding-window
// cap (schema's max_messages).
func (r *ConversationRepo) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (models.Message, error) {
	tx, err := r.client.Tx(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("repositories: begin tx: %w", err)
	}
	defer tx.Rollback()

	conv, err := tx.Conversation.Query().Where(conversation.IDEQ(conversationID)).Only(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("repositories: load conversation %s: %w", conversationID, err)
	}

	last, err := tx.Message.Query().
		Where(message.ConversationIDEQ(conversationID)).
		Order(ent.Desc(message.FieldSeq)).
		First(ctx)
	nextSeq := 1
	if err == nil {
		nextSeq = last.Seq + 1
	} else if !ent.IsNotFound(err) {
		return models.Message{}, fmt.Errorf("repositories: load last message: %w", err)
	}

	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}
	toolCalls, err := toolCallsToJSON(msg.ToolCalls)
	if err != nil {
		return models.Message{}, err
	}

	builder := tx.Message.Create().
		SetID(id).
		SetConversationID(conversationID).
		SetSeq(nextSeq).
		SetRole(string(msg.Role)).
		SetNillableContent(msg.Content).
		SetNillableName(msg.Name).
		SetNillableToolCallID(msg.ToolCallID)
	if toolCalls != nil {
		builder = builder.SetToolCalls(toolCalls)
	}

	saved, err := builder.Save(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("repositories: save message: %w", err)
	}

	if err := tx.Conversation.UpdateOneID(conversationID).SetLastActivity(time.Now()).Exec(ctx); err != nil {
		return models.Message{}, fmt.Errorf("repositories: touch conversation: %w", err)
	}

	if err := trimOldest(ctx, tx, conversationID, conv.MaxMessages); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("repositories: commit append: %w", err)
	}

	return toModelMessage(saved), nil
}

// trimOldest deletes the oldest messages for conversationID once the
// stored count exceeds maxMessages. Must run inside tx.
func trimOldest(ctx context.Context, tx *ent.Tx, conversationID string, maxMessages int) error {
	if maxMessages <= 0 {
		return nil
	}
	count, err := tx.Message.Query().Where(message.ConversationIDEQ(conversationID)).Count(ctx)
	if err != nil {
		return fmt.Errorf("repositories: count messages: %w", err)
	}
	over := count - maxMessages
	if over <= 0 {
		return nil
	}
	stale, err := tx.Message.Query().
		Where(message.ConversationIDEQ(conversationID)).
		Order(ent.Asc(message.FieldSeq)).
		Limit(over).
		All(ctx)
	if err != nil {
		return fmt.Errorf("repositories: load stale messages: %w", err)
	}
	ids := make([]string, len(stale))
	for i, m := range stale {
		ids[i] = m.ID
	}
	if _, err := tx.Message.Delete().Where(message.IDIn(ids...)).Exec(ctx); err != nil {
		return fmt.Errorf("repositories: trim stale messages: %w", err)
	}
	return nil
}

// LoadMessages returns conversationID's full history in append order.
func (r *ConversationRepo) LoadMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.client.Message.Query().
		Where(message.ConversationIDEQ(conversationID)).
		Order(ent.Asc(message.FieldSeq)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: load messages: %w", err)
	}
	out := make([]models.Message, len(rows))
	for i, m := range rows {
		out[i] = toModelMessage(m)
	}
	return out, nil
}

// Snapshot copies conversationID's current message list into a new
// ConversationSnapshot row and returns its ID.
func (r *ConversationRepo) Snapshot(ctx context.Context, conversationID string) (string, error) {
	messages, err := r.LoadMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("repositories: marshal snapshot: %w", err)
	}
	var asMaps []map[string]interface{}
	if err := json.Unmarshal(raw, &asMaps); err != nil {
		return "", fmt.Errorf("repositories: normalize snapshot: %w", err)
	}

	id := uuid.New().String()
	_, err = r.client.ConversationSnapshot.Create().
		SetID(id).
		SetConversationID(conversationID).
		SetMessagesJSON(asMaps).
		Save(ctx)
	if err != nil {
		return "", fmt.Errorf("repositories: save snapshot: %w", err)
	}
	return id, nil
}

// ReplaceMessages deletes conversationID's message history and
// installs messages in its place, renumbering sequence from 1.
func (r *ConversationRepo) ReplaceMessages(ctx context.Context, conversationID string, messages []models.Message) error {
	tx, err := r.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("repositories: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceMessagesTx(ctx, tx, conversationID, messages); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repositories: commit replace: %w", err)
	}
	return nil
}

func replaceMessagesTx(ctx context.Context, tx *ent.Tx, conversationID string, messages []models.Message) error {
	if _, err := tx.Message.Delete().Where(message.ConversationIDEQ(conversationID)).Exec(ctx); err != nil {
		return fmt.Errorf("repositories: clear messages: %w", err)
	}
	for i, msg := range messages {
		id := msg.ID
		if id == "" {
			id = uuid.New().String()
		}
		toolCalls, err := toolCallsToJSON(msg.ToolCalls)
		if err != nil {
			return err
		}
		builder := tx.Message.Create().
			SetID(id).
			SetConversationID(conversationID).
			SetSeq(i + 1).
			SetRole(string(msg.Role)).
			SetNillableContent(msg.Content).
			SetNillableName(msg.Name).
			SetNillableToolCallID(msg.ToolCallID)
		if toolCalls != nil {
			builder = builder.SetToolCalls(toolCalls)
		}
		if _, err := builder.Save(ctx); err != nil {
			return fmt.Errorf("repositories: reinsert message: %w", err)
		}
	}
	return nil
}

// RestoreSnapshot restores conversationID to snapshotID's message
// list and, if resultMessage is non-nil, appends it afterward.
func (r *ConversationRepo) RestoreSnapshot(ctx context.Context, conversationID, snapshotID string, resultMessage *models.Message) error {
	tx, err := r.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("repositories: begin tx: %w", err)
	}
	defer tx.Rollback()

	snap, err := tx.ConversationSnapshot.Query().
		Where(
			conversationsnapshot.IDEQ(snapshotID),
			conversationsnapshot.ConversationIDEQ(conversationID),
		).
		Only(ctx)
	if err != nil {
		return fmt.Errorf("repositories: load snapshot %s: %w", snapshotID, err)
	}

	raw, err := json.Marshal(snap.MessagesJSON)
	if err != nil {
		return fmt.Errorf("repositories: marshal snapshot payload: %w", err)
	}
	var restored []models.Message
	if err := json.Unmarshal(raw, &restored); err != nil {
		return fmt.Errorf("repositories: decode snapshot payload: %w", err)
	}

	if err := replaceMessagesTx(ctx, tx, conversationID, restored); err != nil {
		return err
	}

	if resultMessage != nil {
		if _, err := appendMessageTx(ctx, tx, conversationID, *resultMessage); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repositories: commit restore: %w", err)
	}
	return nil
}

func appendMessageTx(ctx context.Context, tx *ent.Tx, conversationID string, msg models.Message) (*ent.Message, error) {
	last, err := tx.Message.Query().
		Where(message.ConversationIDEQ(conversationID)).
		Order(ent.Desc(message.FieldSeq)).
		First(ctx)
	nextSeq := 1
	if err == nil {
		nextSeq = last.Seq + 1
	} else if !ent.IsNotFound(err) {
		return nil, fmt.Errorf("repositories: load last message: %w", err)
	}

	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}
	toolCalls, err := toolCallsToJSON(msg.ToolCalls)
	if err != nil {
		return nil, err
	}
	builder := tx.Message.Create().
		SetID(id).
		SetConversationID(conversationID).
		SetSeq(nextSeq).
		SetRole(string(msg.Role)).
		SetNillableContent(msg.Content).
		SetNillableName(msg.Name).
		SetNillableToolCallID(msg.ToolCallID)
	if toolCalls != nil {
		builder = builder.SetToolCalls(toolCalls)
	}
	saved, err := builder.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: save message: %w", err)
	}
	return saved, nil
}

// Create persists a new conversation, defaulting maxMessages to the
// schema's sliding-window cap when unset by the caller.
func (r *ConversationRepo) Create(ctx context.Context, id string, title, description *string, maxMessages int) (models.Conversation, error) {
	builder := r.client.Conversation.Create().
		SetID(id).
		SetNillableTitle(title).
		SetNillableDescription(description)
	if maxMessages > 0 {
		builder = builder.SetMaxMessages(maxMessages)
	}
	row, err := builder.Save(ctx)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("repositories: create conversation %s: %w", id, err)
	}
	return toModelConversation(row), nil
}

// Get loads a conversation with its full message history. Returns a
// wrapped apperrors.ErrNotFound when conversationID does not exist, so
// callers above this package never need to import ent.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	row, err := r.client.Conversation.Query().Where(conversation.IDEQ(conversationID)).Only(ctx)
	if ent.IsNotFound(err) {
		return models.Conversation{}, fmt.Errorf("repositories: conversation %s: %w", conversationID, apperrors.ErrNotFound)
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("repositories: load conversation %s: %w", conversationID, err)
	}
	messages, err := r.LoadMessages(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	out := toModelConversation(row)
	out.Messages = messages
	return out, nil
}

// FindActive returns active conversations ordered newest-activity-first.
func (r *ConversationRepo) FindActive(ctx context.Context, limit, offset int) ([]models.Conversation, error) {
	rows, err := r.client.Conversation.Query().
		Where(conversation.IsActiveEQ(true)).
		Order(ent.Desc(conversation.FieldLastActivity)).
		Limit(limit).
		Offset(offset).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: find active conversations: %w", err)
	}
	out := make([]models.Conversation, len(rows))
	for i, row := range rows {
		out[i] = toModelConversation(row)
	}
	return out, nil
}

// FindByActivityRange returns conversations last active within [from, to].
func (r *ConversationRepo) FindByActivityRange(ctx context.Context, from, to time.Time) ([]models.Conversation, error) {
	rows, err := r.client.Conversation.Query().
		Where(
			conversation.LastActivityGTE(from),
			conversation.LastActivityLTE(to),
		).
		Order(ent.Desc(conversation.FieldLastActivity)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: find conversations by activity range: %w", err)
	}
	out := make([]models.Conversation, len(rows))
	for i, row := range rows {
		out[i] = toModelConversation(row)
	}
	return out, nil
}

// CleanupOlderThan deletes conversations inactive for more than
// hoursInactive hours, cascading to their messages, snapshots, agent
// context and plans via the schema's OnDelete(Cascade) edges, and
// returns the number removed.
func (r *ConversationRepo) CleanupOlderThan(ctx context.Context, hoursInactive int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(hoursInactive) * time.Hour)
	n, err := r.client.Conversation.Delete().
		Where(conversation.LastActivityLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("repositories: cleanup stale conversations: %w", err)
	}
	return n, nil
}

// CountActive reports how many conversations are currently active.
func (r *ConversationRepo) CountActive(ctx context.Context) (int, error) {
	n, err := r.client.Conversation.Query().Where(conversation.IsActiveEQ(true)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("repositories: count active conversations: %w", err)
	}
	return n, nil
}

// SaveSnapshot persists an opaque, caller-chosen blob under snapshotID
// — the generic counterpart to Snapshot/RestoreSnapshot's fixed
// subtask-isolation message shape (spec's `saveSnapshot(id, blob)`).
func (r *ConversationRepo) SaveSnapshot(ctx context.Context, conversationID, snapshotID string, blob []map[string]interface{}) error {
	_, err := r.client.ConversationSnapshot.Create().
		SetID(snapshotID).
		SetConversationID(conversationID).
		SetMessagesJSON(blob).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("repositories: save snapshot blob %s: %w", snapshotID, err)
	}
	return nil
}

func (r *ConversationRepo) GetSnapshot(ctx context.Context, snapshotID string) ([]map[string]interface{}, error) {
	row, err := r.client.ConversationSnapshot.Query().
		Where(conversationsnapshot.IDEQ(snapshotID)).
		Only(ctx)
	if err != nil {
		return nil, fmt.Errorf("repositories: load snapshot blob %s: %w", snapshotID, err)
	}
	return row.MessagesJSON, nil
}

func (r *ConversationRepo) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	_, err := r.client.ConversationSnapshot.Delete().
		Where(conversationsnapshot.IDEQ(snapshotID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("repositories: delete snapshot %s: %w", snapshotID, err)
	}
	return nil
}

func toModelConversation(row *ent.Conversation) models.Conversation {
	return models.Conversation{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		IsActive:     row.IsActive,
		LastActivity: row.LastActivity,
		MaxMessages:  row.MaxMessages,
		CreatedAt:    row.CreatedAt,
	}
}

func toModelMessage(m *ent.Message) models.Message {
	toolCalls, _ := toolCallsFromJSON(m.ToolCalls)
	return models.Message{
		ID:         m.ID,
		Seq:        m.Seq,
		Role:       models.Role(m.Role),
		Content:    m.Content,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
		ToolCalls:  toolCalls,
		CreatedAt:  m.CreatedAt,
	}
}

func toolCallsToJSON(tcs []models.ToolCallRequest) ([]map[string]interface{}, error) {
	if len(tcs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(tcs)
	if err != nil {
		return nil, fmt.Errorf("repositories: marshal tool calls: %w", err)
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("repositories: normalize tool calls: %w", err)
	}
	return out, nil
}

func toolCallsFromJSON(raw []map[string]interface{}) ([]models.ToolCallRequest, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("repositories: marshal stored tool calls: %w", err)
	}
	var out []models.ToolCallRequest
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("repositories: decode stored tool calls: %w", err)
	}
	return out, nil
}
