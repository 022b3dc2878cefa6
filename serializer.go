package eventsource

import (
	"encoding/json"
	"reflect"
)

// Record is the storage-facing representation of an event.
type Record struct {
	// SequenceID is the originator_id.
	SequenceID string

	// Position is the originator_version.
	Position int

	// Topic dispatches the mutate function on read.
	Topic string

	// State is the serialized event body, including its hash fields.
	State []byte
}

// History is an ordered collection of Records sortable by Position.
type History []Record

func (h History) Len() int           { return len(h) }
func (h History) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h History) Less(i, j int) bool { return h[i].Position < h[j].Position }

// Serializer converts between Event values and their Record form.
type Serializer interface {
	MarshalEvent(event Event) (Record, error)
	UnmarshalEvent(record Record) (Event, error)
	MarshalAll(events ...Event) (History, error)
}

// JSONSerializer is the default Serializer, using encoding/json for the wire
// format. The codec is swappable by implementing Serializer directly;
// canonical hashing (hash.go) is independent of whichever Serializer is in
// use.
type JSONSerializer struct{}

// NewJSONSerializer constructs a JSONSerializer, eagerly registering the
// given event prototypes so UnmarshalEvent can resolve their topics.
func NewJSONSerializer(prototypes ...interface{}) *JSONSerializer {
	_ = Register(prototypes...)
	return &JSONSerializer{}
}

// MarshalEvent implements Serializer.
func (s *JSONSerializer) MarshalEvent(event Event) (Record, error) {
	topic, err := EventType(event)
	if err != nil {
		return Record{}, err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return Record{}, ErrInvalidEncoding
	}

	return Record{
		SequenceID: event.AggregateID(),
		Position:   event.EventVersion(),
		Topic:      topic,
		State:      data,
	}, nil
}

// UnmarshalEvent implements Serializer.
func (s *JSONSerializer) UnmarshalEvent(record Record) (Event, error) {
	t, err := resolve(record.Topic)
	if err != nil {
		return nil, err
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(record.State, ptr.Interface()); err != nil {
		return nil, ErrInvalidEncoding
	}

	event, ok := ptr.Interface().(Event)
	if !ok {
		return nil, &TopicResolutionError{Topic: record.Topic}
	}
	return event, nil
}

// MarshalAll implements Serializer.
func (s *JSONSerializer) MarshalAll(events ...Event) (History, error) {
	history := make(History, 0, len(events))
	for _, event := range events {
		record, err := s.MarshalEvent(event)
		if err != nil {
			return nil, err
		}
		history = append(history, record)
	}
	return history, nil
}
