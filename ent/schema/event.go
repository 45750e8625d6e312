package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the schema definition for the Event entity: the durable
// backing store for pkg/events' catchup query, written in the same
// transaction as the pg_notify that fans it out to live subscribers.
type Event struct {
	ent.Schema
}

func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id").
			StorageKey("event_id"),
		field.String("conversation_id").
			Optional().
			Nillable().
			Comment("empty for channel-global events (approval queue, system stats)"),
		field.String("channel").
			Comment("NOTIFY channel this event was published on"),
		field.JSON("payload", map[string]interface{}{}),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

func (Event) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("channel", "id"),
		index.Fields("created_at"),
	}
}
