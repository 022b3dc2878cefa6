package eventsource

import "time"

// Event is satisfied by every domain event. Concrete event types embed Model
// to get an implementation for free.
type Event interface {
	// AggregateID returns the originator_id of the aggregate the event belongs to.
	AggregateID() string

	// EventVersion returns the originator_version; 0 marks the creation event.
	EventVersion() int

	// EventAt returns the wall-clock time the event was created. Informational
	// only; never used for ordering.
	EventAt() time.Time

	// PreviousHash returns the event_hash of the immediately preceding event on
	// this aggregate's chain. Empty for the creation event.
	PreviousHash() string

	// EventHash returns the content hash computed over every other field,
	// including PreviousHash.
	EventHash() string
}

// Model is the envelope every concrete event embeds. It supplies the common
// Event fields; variant-specific payload fields live alongside it in the
// embedding struct.
type Model struct {
	// ID is the originator_id.
	ID string `json:"id"`

	// Version is the originator_version.
	Version int `json:"version"`

	// At is the creation wall-clock time.
	At time.Time `json:"at"`

	// Topic names the aggregate class; set only on the creation event
	// (Version == 0), used by the Repository to verify history starts there.
	Topic string `json:"topic,omitempty"`

	// Previous is the previous_hash; empty on the creation event.
	Previous string `json:"previous_hash,omitempty"`

	// Hash is the event_hash, computed once at construction and never
	// recomputed afterward except by CheckHash for verification.
	Hash string `json:"event_hash,omitempty"`
}

// AggregateID implements Event.
func (m Model) AggregateID() string { return m.ID }

// EventVersion implements Event.
func (m Model) EventVersion() int { return m.Version }

// EventAt implements Event.
func (m Model) EventAt() time.Time { return m.At }

// PreviousHash implements Event.
func (m Model) PreviousHash() string { return m.Previous }

// EventHash implements Event.
func (m Model) EventHash() string { return m.Hash }

// OriginatorTopic returns the aggregate class topic carried by the creation
// event; empty for every other event on the chain.
func (m Model) OriginatorTopic() string { return m.Topic }

// isCreation reports whether event is version 0 of its aggregate.
func isCreation(event Event) bool {
	return event.EventVersion() == 0
}

// setModel and setHash back the envelopeSetter interface (aggregate.go):
// pointer-receiver methods on the embedded Model so any *T embedding Model
// satisfies envelopeSetter automatically.
func (m *Model) setModel(newModel Model) { *m = newModel }
func (m *Model) setHash(hash string)     { m.Hash = hash }
