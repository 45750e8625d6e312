package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Conversation holds the schema definition for the Conversation entity.
// Top-level aggregate owning messages, snapshots and the agent context.
type Conversation struct {
	ent.Schema
}

func (Conversation) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("conversation_id").
			Unique().
			Immutable(),
		field.String("title").
			Optional().
			Nillable(),
		field.String("description").
			Optional().
			Nillable(),
		field.Bool("is_active").
			Default(true),
		field.Time("last_activity").
			Default(time.Now),
		field.Int("max_messages").
			Default(200).
			Comment("Sliding-window cap enforced on append"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (Conversation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("messages", Message.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("snapshots", ConversationSnapshot.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("agent_context", AgentContext.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("plans", ExecutionPlan.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (Conversation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("is_active", "last_activity"),
	}
}
