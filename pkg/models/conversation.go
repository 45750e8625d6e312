// Package models holds plain data-transfer types shared across package
// boundaries so callers never need to import generated ent entities
// directly.
package models

import "time"

// Role is the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is an assistant-issued call to a named tool.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is a single turn in a Conversation's LLM-visible history.
type Message struct {
	ID         string            `json:"id"`
	Seq        int               `json:"seq"`
	Role       Role              `json:"role"`
	Content    *string           `json:"content,omitempty"`
	Name       *string           `json:"name,omitempty"`
	ToolCallID *string           `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Conversation is the top-level aggregate owning a message history, an
// agent context, and any plans raised over its lifetime.
type Conversation struct {
	ID           string     `json:"id"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastActivity time.Time  `json:"last_activity"`
	MaxMessages  int        `json:"max_messages"`
	CreatedAt    time.Time  `json:"created_at"`
	Messages     []Message  `json:"messages,omitempty"`
}

// Snapshot is an opaque, restorable copy of a conversation's message
// list, taken before a context-isolated subtask run.
type Snapshot struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
}
