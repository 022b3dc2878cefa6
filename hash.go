package eventsource

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalEncode produces a deterministic byte encoding of event, excluding
// its own event_hash field, suitable for hashing.
//
// encoding/json already sorts map keys when marshaling a map[string]any, so
// round-tripping the event through a map gives a field-name-sorted canonical
// form without a bespoke canonicalization library (none was found anywhere
// in the retrieved corpus).
func canonicalEncode(event Event) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, ErrInvalidEncoding
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, ErrInvalidEncoding
	}
	delete(fields, "event_hash")

	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	return canonical, nil
}

// computeHash hashes the canonical encoding of event with SHA-256. A
// cryptographic hash is a standard-library concern in Go (crypto/sha256); no
// third-party hash library appears anywhere in the retrieved corpus.
func computeHash(event Event) (string, error) {
	canonical, err := canonicalEncode(event)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CheckHash recomputes event's event_hash over its canonical encoding and
// compares it against the stored value, failing with *EventHashError on
// mismatch.
func CheckHash(event Event) error {
	want, err := computeHash(event)
	if err != nil {
		return err
	}
	if want != event.EventHash() {
		return &EventHashError{SequenceID: event.AggregateID(), Version: event.EventVersion()}
	}
	return nil
}
