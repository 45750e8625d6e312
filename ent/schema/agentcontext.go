package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// AgentContext holds the schema definition for the AgentContext entity.
// Tracks which agent variant currently owns a conversation and how many
// times control has switched.
type AgentContext struct {
	ent.Schema
}

func (AgentContext) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("agent_context_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Unique().
			Immutable(),
		field.String("current_agent"),
		field.Int("switch_count").
			Default(0),
		field.Int("max_switches").
			Default(25).
			Comment("Loop-guard ceiling on agent-to-agent handoffs"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

func (AgentContext) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", Conversation.Type).
			Ref("agent_context").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
		edge.To("switches", AgentSwitch.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
