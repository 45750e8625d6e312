package api

import "github.com/codeready-toolchain/agentrt/pkg/models"

// ConversationResponse is returned by POST /api/v1/sessions and
// GET /api/v1/sessions/:id.
type ConversationResponse struct {
	ID           string           `json:"id"`
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	IsActive     bool             `json:"is_active"`
	LastActivity string           `json:"last_activity"`
	CreatedAt    string           `json:"created_at"`
	Messages     []models.Message `json:"messages,omitempty"`
}

// ConversationListResponse is returned by GET /api/v1/sessions.
type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Page          int                     `json:"page"`
	PageSize      int                     `json:"page_size"`
}

// AcceptedResponse acknowledges a fire-and-forget decision endpoint that
// has no further synchronous output (the outcome, if any, shows up as a
// stream chunk on the conversation's next /messages call).
type AcceptedResponse struct {
	Status string `json:"status"`
}

// AgentStatsResponse answers GET /api/v1/system/agent-stats: how many
// conversations each agent variant currently owns (§4.9's loop guard
// made observable).
type AgentStatsResponse struct {
	ConversationsByAgent map[string]int `json:"conversations_by_agent"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
