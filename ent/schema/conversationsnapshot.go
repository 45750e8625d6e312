package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationSnapshot holds the schema definition for the
// ConversationSnapshot entity — an opaque, point-in-time copy of a
// conversation's message list, taken before a context-isolated subtask
// run and restored after it completes.
type ConversationSnapshot struct {
	ent.Schema
}

func (ConversationSnapshot) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("snapshot_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.JSON("messages_json", []map[string]interface{}{}).
			Comment("Serialized message list at snapshot time"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (ConversationSnapshot) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", Conversation.Type).
			Ref("snapshots").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (ConversationSnapshot) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "created_at"),
	}
}
