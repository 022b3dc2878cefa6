package eventsource

import (
	"testing"
	"time"
)

func TestJSONSerializerMarshalUnmarshalRoundTrip(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	event := &counterCreated{Seed: 42}
	root := &Root{id: "ser-agg-1"}
	if err := setEnvelope(event, root, counterTopic, time.Now()); err != nil {
		t.Fatalf("setEnvelope: %v", err)
	}

	s := NewJSONSerializer()
	record, err := s.MarshalEvent(event)
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	if record.SequenceID != "ser-agg-1" {
		t.Fatalf("SequenceID = %q; want %q", record.SequenceID, "ser-agg-1")
	}
	if record.Topic != counterTopic {
		t.Fatalf("Topic = %q; want %q", record.Topic, counterTopic)
	}

	decoded, err := s.UnmarshalEvent(record)
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	got, ok := decoded.(*counterCreated)
	if !ok {
		t.Fatalf("decoded type = %T; want *counterCreated", decoded)
	}
	if got.Seed != 42 {
		t.Fatalf("Seed = %d; want 42", got.Seed)
	}
	if got.Hash != event.Hash {
		t.Fatalf("decoded hash %q does not match original %q", got.Hash, event.Hash)
	}
}

func TestJSONSerializerUnmarshalUnknownTopicFails(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	s := NewJSONSerializer()
	_, err := s.UnmarshalEvent(Record{Topic: "nonexistent#topic", State: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected UnmarshalEvent to fail for an unbound topic")
	}
	if !IsIntegrityError(err) {
		t.Fatalf("expected an IntegrityError, got %T: %v", err, err)
	}
}

func TestJSONSerializerMarshalAllPreservesOrder(t *testing.T) {
	ResetRegistry()
	defer ResetRegistry()

	root := &Root{}
	now := time.Now()
	events := make([]Event, 0, 3)
	for i := 0; i < 3; i++ {
		e := &counterIncremented{By: i}
		topic := ""
		if i == 0 {
			topic = counterTopic
		}
		if err := setEnvelope(e, root, topic, now); err != nil {
			t.Fatalf("setEnvelope: %v", err)
		}
		root.version = i + 1
		root.headHash = e.Hash
		events = append(events, e)
	}

	s := NewJSONSerializer()
	history, err := s.MarshalAll(events...)
	if err != nil {
		t.Fatalf("MarshalAll: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d records; want 3", len(history))
	}
	for i, record := range history {
		if record.Position != i {
			t.Fatalf("history[%d].Position = %d; want %d", i, record.Position, i)
		}
	}
}
