package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentSwitch holds the schema definition for the AgentSwitch entity —
// an append-only log of agent-to-agent handoffs within one AgentContext.
type AgentSwitch struct {
	ent.Schema
}

func (AgentSwitch) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("agent_switch_id").
			Unique().
			Immutable(),
		field.String("agent_context_id").
			Immutable(),
		field.String("from_agent"),
		field.String("to_agent"),
		field.String("reason").
			Optional().
			Nillable(),
		field.Float("confidence").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (AgentSwitch) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("agent_context", AgentContext.Type).
			Ref("switches").
			Field("agent_context_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (AgentSwitch) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("agent_context_id", "created_at"),
	}
}
