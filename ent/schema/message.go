package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Message holds the schema definition for the Message entity.
// A single turn in a conversation's LLM-visible history.
type Message struct {
	ent.Schema
}

func (Message) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("message_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.Int("seq").
			Comment("Conversation-scoped append order"),
		field.Enum("role").
			Values("system", "user", "assistant", "tool"),
		field.Text("content").
			Optional().
			Nillable().
			Comment("Nil for assistant messages that carry only a tool call"),
		field.String("name").
			Optional().
			Nillable(),
		field.String("tool_call_id").
			Optional().
			Nillable().
			Comment("Set on tool-role messages, links back to the assistant tool call"),
		field.JSON("tool_calls", []map[string]interface{}{}).
			Optional().
			Comment("Assistant-role messages: [{id, name, arguments}]"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (Message) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", Conversation.Type).
			Ref("messages").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (Message) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "seq").Unique(),
	}
}
