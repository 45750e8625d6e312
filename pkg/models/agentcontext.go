package models

import "time"

// AgentSwitch is one recorded handoff between agent variants.
type AgentSwitch struct {
	ID         string    `json:"id"`
	FromAgent  string    `json:"from_agent"`
	ToAgent    string    `json:"to_agent"`
	Reason     *string   `json:"reason,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AgentContext tracks which agent variant currently owns a conversation.
type AgentContext struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	CurrentAgent   string        `json:"current_agent"`
	SwitchCount    int           `json:"switch_count"`
	MaxSwitches    int           `json:"max_switches"`
	Switches       []AgentSwitch `json:"switches,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CanSwitch reports whether one more handoff is allowed before the
// loop-guard ceiling is hit.
func (a *AgentContext) CanSwitch() bool {
	return a.SwitchCount < a.MaxSwitches
}
