package eventsource

import (
	"fmt"
	"time"
)

// Aggregate is the in-memory state machine every domain aggregate
// implements. On is the mutate function: the only legal path by which an
// aggregate's fields change. Root exposes the version/head-hash/pending-
// buffer bookkeeping the engine needs to drive On without the aggregate
// having to manage it itself.
//
// Root() stands in for the inheritance trick a dynamically typed aggregate
// base class would use: an aggregate embeds Root by value and returns its
// address, e.g.:
//
//	type BankAccount struct {
//	    eventsource.Root
//	    Balance int
//	}
//	func (a *BankAccount) Root() *eventsource.Root { return &a.Root }
type Aggregate interface {
	On(event Event) error
	Root() *Root
}

// Root is embedded by value in every concrete Aggregate. It tracks version,
// head hash, discard state, and the buffer of events triggered but not yet
// saved.
type Root struct {
	id             string
	version        int
	headHash       string
	discarded      bool
	createdOn      time.Time
	lastModifiedOn time.Time
	pending        []Event
}

// ID returns the aggregate's originator_id.
func (r *Root) ID() string { return r.id }

// Version returns the number of events applied so far.
func (r *Root) Version() int { return r.version }

// HeadHash returns the event_hash of the most recently applied event.
func (r *Root) HeadHash() string { return r.headHash }

// IsDiscarded reports whether a Discarded event has been applied.
func (r *Root) IsDiscarded() bool { return r.discarded }

// CreatedOn returns the creation event's timestamp.
func (r *Root) CreatedOn() time.Time { return r.createdOn }

// LastModifiedOn returns the most recently applied event's timestamp.
func (r *Root) LastModifiedOn() time.Time { return r.lastModifiedOn }

// Pending returns the events triggered but not yet saved, oldest first. The
// returned slice is a copy; mutating it has no effect on the aggregate.
func (r *Root) Pending() []Event {
	out := make([]Event, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *Root) clearPending() {
	r.pending = nil
}

// Apply folds event into state, verifying that its previous_hash matches the
// aggregate's current head_hash before advancing the chain. It is used both
// to replay stored history (Repository.Load) and, via TriggerEvent,
// immediately after a new event is constructed.
func Apply(state Aggregate, event Event) error {
	root := state.Root()

	if isCreation(event) {
		if event.PreviousHash() != "" {
			return &HeadHashError{
				SequenceID: event.AggregateID(), Version: event.EventVersion(),
				Expected: "", Actual: event.PreviousHash(),
			}
		}
	} else if event.PreviousHash() != root.headHash {
		return &HeadHashError{
			SequenceID: event.AggregateID(), Version: event.EventVersion(),
			Expected: root.headHash, Actual: event.PreviousHash(),
		}
	}

	if err := state.On(event); err != nil {
		return err
	}

	root.id = event.AggregateID()
	root.version = event.EventVersion() + 1
	root.headHash = event.EventHash()
	if root.createdOn.IsZero() {
		root.createdOn = event.EventAt()
	}
	root.lastModifiedOn = event.EventAt()
	if _, ok := event.(*Discarded); ok {
		root.discarded = true
	}
	return nil
}

// setEnvelope completes event's Model (id, version, previous_hash, and, for
// the creation event, topic) from root's current state, then computes and
// sets event_hash over the now-complete event.
func setEnvelope(event envelopeSetter, root *Root, topic string, at time.Time) error {
	m := Model{
		ID:       root.id,
		Version:  root.version,
		At:       at,
		Previous: root.headHash,
	}
	if root.version == 0 {
		m.Topic = topic
	}
	event.setModel(m)

	hash, err := computeHash(event.(Event))
	if err != nil {
		return err
	}
	event.setHash(hash)
	return nil
}

// envelopeSetter is implemented by a pointer to every concrete event type
// that embeds Model, through Model's setModel/setHash pointer-receiver
// methods (see event.go).
type envelopeSetter interface {
	setModel(Model)
	setHash(string)
}

// TriggerEvent constructs event's envelope against root's current state
// (next version, previous_hash := head_hash), applies it to state via Apply,
// and — only once application succeeds — buffers it for Save. originatorTopic
// is required exactly when this is the creation event (root.Version() == 0)
// and is recorded on the envelope for the Repository to verify history
// starts there; it is ignored for every later event.
func TriggerEvent(state Aggregate, event envelopeSetter, at time.Time, originatorTopic ...string) (Event, error) {
	root := state.Root()
	if root.discarded {
		return nil, ErrAggregateDiscarded
	}

	var topic string
	if len(originatorTopic) > 0 {
		topic = originatorTopic[0]
	}

	if err := setEnvelope(event, root, topic, at); err != nil {
		return nil, err
	}

	typed := event.(Event)
	if err := Apply(state, typed); err != nil {
		return nil, err
	}

	root.pending = append(root.pending, typed)
	return typed, nil
}

// Discard triggers the built-in Discarded event, marking the aggregate
// terminal. It is never a creation event, so no originator topic is needed.
func Discard(state Aggregate, at time.Time) (Event, error) {
	return TriggerEvent(state, &Discarded{}, at)
}

// Create assigns id as state's originator_id and triggers event as its
// creation event (version 0), recording originatorTopic on the envelope so
// a Repository can later verify history begins there. It is the only
// sanctioned way to give a freshly constructed aggregate an id; calling it
// on an aggregate that already has one is an error.
func Create(state Aggregate, id, originatorTopic string, event envelopeSetter, at time.Time) (Event, error) {
	root := state.Root()
	if root.id != "" || root.version != 0 {
		return nil, fmt.Errorf("eventsource: Create called on an aggregate that already has state (id=%q, version=%d)", root.id, root.version)
	}
	root.id = id
	return TriggerEvent(state, event, at, originatorTopic)
}
