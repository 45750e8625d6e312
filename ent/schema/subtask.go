package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Subtask holds the schema definition for the Subtask entity — one node
// in an ExecutionPlan's dependency DAG. Dependencies reference sibling
// subtasks by position, not by pointer, since the set is fixed once the
// plan is created (see Design Notes on cyclic-reference modeling).
type Subtask struct {
	ent.Schema
}

func (Subtask) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("subtask_id").
			Unique().
			Immutable(),
		field.String("plan_id").
			Immutable(),
		field.Int("position").
			Immutable().
			Comment("Index within the plan's subtask list; dependency targets"),
		field.Text("description"),
		field.String("agent").
			Comment("Agent variant assigned to execute this subtask"),
		field.JSON("dependencies", []int{}).
			Immutable().
			Comment("Positions of subtasks that must complete first"),
		field.Enum("status").
			Values("pending", "running", "done", "failed", "blocked").
			Default("pending"),
		field.Text("result").
			Optional().
			Nillable(),
		field.Text("error").
			Optional().
			Nillable(),
		field.Int("retry_count").
			Default(0),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

func (Subtask) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("plan", ExecutionPlan.Type).
			Ref("subtasks").
			Field("plan_id").
			Unique().
			Required().
			Immutable(),
	}
}

func (Subtask) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("plan_id", "position").Unique(),
	}
}
