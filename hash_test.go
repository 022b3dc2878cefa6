package eventsource

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/xerrors"
)

type counterCreated struct {
	Model
	Seed int `json:"seed"`
}

func TestCheckHashRoundTrip(t *testing.T) {
	event := &counterCreated{Seed: 7}
	root := &Root{}
	if err := setEnvelope(event, root, "test#counterCreated", time.Now()); err != nil {
		t.Fatalf("setEnvelope: %v", err)
	}

	if err := CheckHash(event); err != nil {
		t.Fatalf("CheckHash on untouched event: %v", err)
	}
}

func TestCheckHashDetectsPayloadTamper(t *testing.T) {
	event := &counterCreated{Seed: 7}
	root := &Root{}
	if err := setEnvelope(event, root, "test#counterCreated", time.Now()); err != nil {
		t.Fatalf("setEnvelope: %v", err)
	}

	forged := *event
	forged.Seed = 99

	err := CheckHash(&forged)
	if err == nil {
		t.Fatal("expected CheckHash to reject a payload change, got nil")
	}
	if !IsIntegrityError(err) {
		t.Fatalf("expected an IntegrityError, got %T: %v", err, err)
	}
	var hashErr *EventHashError
	if !xerrors.As(err, &hashErr) {
		t.Fatalf("expected *EventHashError, got %T", err)
	}
}

func TestCanonicalEncodeExcludesHashField(t *testing.T) {
	event := &counterCreated{Seed: 1}
	root := &Root{}
	if err := setEnvelope(event, root, "test#counterCreated", time.Now()); err != nil {
		t.Fatalf("setEnvelope: %v", err)
	}

	raw, err := canonicalEncode(event)
	if err != nil {
		t.Fatalf("canonicalEncode: %v", err)
	}
	if event.Hash == "" {
		t.Fatal("expected event_hash to be set by setEnvelope")
	}
	if strings.Contains(string(raw), event.Hash) {
		t.Fatal("canonical encoding must not include the event's own hash")
	}
}
