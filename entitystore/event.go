package entitystore

import "maps"

// EntityID identifies an entity. Entities have no persisted row of their own.
type EntityID = int64

// EventID is the monotonically increasing sequence number a backend assigns to an appended event.
type EventID = int64

// EventType classifies an event. The numeric values are the ones persisted in the type column.
type EventType int

const (
	// EventTypeSnapshot marks an event whose payload is the complete materialized state.
	EventTypeSnapshot EventType = 1

	// EventTypeUpdate marks an event whose payload is a partial diff.
	EventTypeUpdate EventType = 2

	// EventTypeDelete marks an entity as logically gone. It is reserved and never produced by the Store.
	EventTypeDelete EventType = 3
)

// String provides a string representation of EventType for logging and debugging.
func (t EventType) String() string {
	switch t {
	case EventTypeSnapshot:
		return "snapshot"
	case EventTypeUpdate:
		return "update"
	case EventTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Fields maps field names to values. It is used both for partial diffs and for complete states.
type Fields map[string]string

// Clone returns a copy that shares no memory with f. A nil Fields clones to an empty one.
func (f Fields) Clone() Fields {
	clone := make(Fields, len(f))
	maps.Copy(clone, f)

	return clone
}

// Equal reports whether f and other hold the same keys with the same values.
func (f Fields) Equal(other Fields) bool {
	return maps.Equal(f, other)
}

// Event is a decoded, immutable log record.
type Event struct {
	ID       EventID
	EntityID EntityID
	Type     EventType
	Payload  Fields
}

// Events is an alias type for a slice of Event.
type Events = []Event

// StoredEvent is the DTO exchanged with a backend Handle.
//
// It is built on scalars so that backends stay agnostic of the payload encoding.
type StoredEvent struct {
	ID          EventID
	EntityID    EntityID
	Type        EventType
	PayloadJSON []byte
}

// StoredEvents is an alias type for a slice of StoredEvent.
type StoredEvents = []StoredEvent
