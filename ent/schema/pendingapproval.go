package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PendingApproval holds the schema definition for the PendingApproval
// entity — a human-in-the-loop gate raised by the approval policy.
type PendingApproval struct {
	ent.Schema
}

func (PendingApproval) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("approval_id").
			Unique().
			Immutable(),
		field.String("request_id").
			Unique().
			Immutable(),
		field.String("request_type").
			Immutable(),
		field.String("subject").
			Immutable(),
		field.String("session_id").
			Immutable(),
		field.JSON("details_json", map[string]interface{}{}).
			Immutable(),
		field.String("reason").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("pending", "approved", "rejected").
			Default("pending"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("decided_at").
			Optional().
			Nillable(),
		field.String("decision_reason").
			Optional().
			Nillable(),
	}
}

func (PendingApproval) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "status"),
		index.Fields("status", "created_at"),
	}
}
