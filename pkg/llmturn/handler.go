// Package llmturn runs one LLM turn: filter tools by the current
// agent's allow-list, call the provider, and apply the at-most-one-
// tool-call-per-turn invariant before persisting and streaming the
// result.
package llmturn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/codeready-toolchain/agentrt/pkg/stream"
)

// ChatRequest is the provider call shape (spec §6).
type ChatRequest struct {
	Model       string
	Messages    []models.Message
	Tools       []models.ToolSpec
	Temperature *float64
	MaxTokens   *int
}

// ChatToolCall is a provider-issued tool invocation.
type ChatToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ChatUsage reports token accounting for one completion.
type ChatUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is the provider reply shape (spec §6).
type ChatResponse struct {
	Content      string
	ToolCalls    []ChatToolCall
	Usage        ChatUsage
	FinishReason string
}

// LLMClient is the narrow provider contract this package needs.
type LLMClient interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ToolFilter resolves an agent's allowed tool catalog. It does not
// validate a chosen call's arguments.
type ToolFilter interface {
	Allowed() []models.ToolSpec
}

// ApprovalDecider evaluates whether a tool call needs a human
// decision and, if so, queues one.
type ApprovalDecider interface {
	Evaluate(ctx context.Context, sessionID string, requestType models.RequestType, subject string, details map[string]any) (requiresApproval bool, approvalRequestID string, err error)
}

// ConversationAppender persists a new message onto a conversation's
// history, returning it with its assigned sequence number.
type ConversationAppender interface {
	AppendMessage(ctx context.Context, conversationID string, msg models.Message) (models.Message, error)
}

// EventPublisher is the narrow event-bus surface this package needs.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// Handler runs a single LLM turn for one conversation.
type Handler struct {
	llm       LLMClient
	convos    ConversationAppender
	approvals ApprovalDecider
	events    EventPublisher
	model     string
}

// NewHandler builds a Handler.
func NewHandler(llm LLMClient, convos ConversationAppender, approvals ApprovalDecider, events EventPublisher, model string) *Handler {
	return &Handler{llm: llm, convos: convos, approvals: approvals, events: events, model: model}
}

// Run executes one turn: filter tools, call the provider, apply the
// single-tool-call invariant, persist, and emit exactly one terminal
// chunk.
func (h *Handler) Run(ctx context.Context, conversationID, sessionID string, history []models.Message, filter ToolFilter, w *stream.Writer) error {
	resp, err := h.llm.ChatCompletion(ctx, ChatRequest{Model: h.model, Messages: history, Tools: filter.Allowed()})
	if err != nil {
		h.events.Publish(ctx, "RequestFailed", map[string]any{"conversation_id": conversationID, "error": err.Error()})
		return w.Emit(ctx, stream.ErrorChunk(err, map[string]any{"conversation_id": conversationID}))
	}

	if len(resp.ToolCalls) == 0 && resp.Content == "" {
		slog.Warn("llm turn produced neither content nor a tool call", "conversation_id", conversationID)
	}

	if len(resp.ToolCalls) > 1 {
		slog.Warn("llm turn produced multiple tool calls, keeping only the first", "conversation_id", conversationID, "count", len(resp.ToolCalls))
	}

	var turnErr error
	if len(resp.ToolCalls) > 0 {
		turnErr = h.handleToolCall(ctx, conversationID, sessionID, resp.ToolCalls[0], w)
	} else {
		turnErr = h.handleAssistantMessage(ctx, conversationID, resp.Content, w)
	}
	if turnErr != nil {
		return w.Emit(ctx, stream.ErrorChunk(turnErr, map[string]any{"conversation_id": conversationID}))
	}
	return nil
}

func (h *Handler) handleToolCall(ctx context.Context, conversationID, sessionID string, call ChatToolCall, w *stream.Writer) error {
	msg := models.Message{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCallRequest{{ID: call.ID, Name: call.Name, Arguments: call.Arguments}},
	}
	if _, err := h.convos.AppendMessage(ctx, conversationID, msg); err != nil {
		return fmt.Errorf("persisting assistant tool-call message: %w", err)
	}
	h.events.Publish(ctx, "ToolExecutionRequested", map[string]any{"conversation_id": conversationID, "tool_name": call.Name, "call_id": call.ID})

	details := make(map[string]any, len(call.Arguments)+1)
	for k, v := range call.Arguments {
		details[k] = v
	}
	details[models.ToolCallDetailKey] = call.ID

	requiresApproval, approvalRequestID, err := h.approvals.Evaluate(ctx, sessionID, models.RequestTypeTool, call.Name, details)
	if err != nil {
		return fmt.Errorf("evaluating approval policy: %w", err)
	}
	if requiresApproval {
		h.events.Publish(ctx, "ToolApprovalRequired", map[string]any{"conversation_id": conversationID, "tool_name": call.Name, "approval_request_id": approvalRequestID})
	}

	return w.Emit(ctx, stream.ToolCallChunk(call.ID, call.Name, call.Arguments, requiresApproval, approvalRequestID))
}

func (h *Handler) handleAssistantMessage(ctx context.Context, conversationID, content string, w *stream.Writer) error {
	msg := models.Message{Role: models.RoleAssistant, Content: strPtr(content)}
	if _, err := h.convos.AppendMessage(ctx, conversationID, msg); err != nil {
		return fmt.Errorf("persisting assistant message: %w", err)
	}
	return w.Emit(ctx, stream.AssistantMessage(content, true))
}

func strPtr(s string) *string { return &s }
