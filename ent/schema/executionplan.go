package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ExecutionPlan holds the schema definition for the ExecutionPlan
// entity — a goal decomposed into an ordered, dependency-linked list of
// subtasks.
type ExecutionPlan struct {
	ent.Schema
}

func (ExecutionPlan) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("plan_id").
			Unique().
			Immutable(),
		field.String("conversation_id").
			Immutable(),
		field.Text("goal").
			Immutable(),
		field.Enum("status").
			Values("draft", "approved", "inProgress", "completed", "failed", "cancelled").
			Default("draft"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("approved_at").
			Optional().
			Nillable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

func (ExecutionPlan) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("conversation", Conversation.Type).
			Ref("plans").
			Field("conversation_id").
			Unique().
			Required().
			Immutable(),
		edge.To("subtasks", Subtask.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (ExecutionPlan) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("conversation_id", "status"),
	}
}
