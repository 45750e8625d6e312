package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// FSMState holds the schema definition for the FSMState entity — the
// durable record of a conversation's current orchestration state.
type FSMState struct {
	ent.Schema
}

func (FSMState) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("fsm_state_id").
			Unique().
			Immutable(),
		field.String("session_id").
			Unique().
			Immutable(),
		field.String("current_state"),
		field.JSON("context_metadata", map[string]interface{}{}).
			Optional(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}
