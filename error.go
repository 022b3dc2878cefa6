package eventsource

import (
	"fmt"

	"golang.org/x/xerrors"
)

// errorType is a lightweight sentinel error for the handful of conditions
// that carry no structured fields.
type errorType string

func (e errorType) Error() string {
	return string(e)
}

const (
	// ErrInvalidEncoding is returned when an event cannot be marshaled or unmarshaled.
	ErrInvalidEncoding errorType = "eventsource: invalid encoding"

	// ErrUnhandledEvent is returned by an Aggregate's On method when it does
	// not recognize the event it was asked to apply.
	ErrUnhandledEvent errorType = "eventsource: unhandled event"

	// ErrAggregateDiscarded is returned by TriggerEvent/Discard when called
	// against an aggregate that has already been discarded.
	ErrAggregateDiscarded errorType = "eventsource: aggregate already discarded"
)

// IntegrityError is implemented by errors that indicate data corruption or
// schema drift: EventHashError, HeadHashError, TopicResolutionError. These
// are never worth retrying; the caller's only recourse is to alert and
// investigate the underlying storage.
type IntegrityError interface {
	error
	integrityError()
}

// ConcurrencyError indicates an optimistic write conflict or a version gap:
// the record manager refused to append because expectedPosition was not the
// last stored position for the sequence, or newPosition was already taken.
type ConcurrencyError struct {
	SequenceID string
	Expected   int
	New        int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("eventsource: concurrency conflict on %v: expected position %v to append %v",
		e.SequenceID, e.Expected, e.New)
}

// IsConcurrencyError reports whether err (or a wrapped cause) is a *ConcurrencyError.
func IsConcurrencyError(err error) bool {
	var ce *ConcurrencyError
	return xerrors.As(err, &ce)
}

// EventHashError indicates a stored event's content does not match its
// recorded event_hash: tamper or corruption of the payload.
type EventHashError struct {
	SequenceID string
	Version    int
}

func (e *EventHashError) Error() string {
	return fmt.Sprintf("eventsource: event hash mismatch for %v at version %v", e.SequenceID, e.Version)
}

func (*EventHashError) integrityError() {}

// HeadHashError indicates an event's previous_hash does not match the
// target aggregate's current head_hash: the chain is broken at this point.
type HeadHashError struct {
	SequenceID string
	Version    int
	Expected   string
	Actual     string
}

func (e *HeadHashError) Error() string {
	return fmt.Sprintf("eventsource: head hash mismatch for %v at version %v: expected %q, got %q",
		e.SequenceID, e.Version, e.Expected, e.Actual)
}

func (*HeadHashError) integrityError() {}

// RepositoryKeyError indicates no such aggregate exists: either it has no
// creation event, or its most recent event is a Discarded.
type RepositoryKeyError struct {
	SequenceID string
}

func (e *RepositoryKeyError) Error() string {
	return fmt.Sprintf("eventsource: no aggregate found with id %v", e.SequenceID)
}

// IsNotFound reports whether err (or a wrapped cause) is a *RepositoryKeyError.
func IsNotFound(err error) bool {
	var rke *RepositoryKeyError
	return xerrors.As(err, &rke)
}

// TopicResolutionError indicates a topic string does not map to any
// registered event variant, or that registering a topic would conflict with
// an existing, different registration.
type TopicResolutionError struct {
	Topic string
}

func (e *TopicResolutionError) Error() string {
	return fmt.Sprintf("eventsource: unbound topic %q", e.Topic)
}

func (*TopicResolutionError) integrityError() {}

// IsIntegrityError reports whether err (or a wrapped cause) is one of the
// three integrity error types: EventHashError, HeadHashError, or
// TopicResolutionError.
func IsIntegrityError(err error) bool {
	var ie IntegrityError
	return xerrors.As(err, &ie)
}
