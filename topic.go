package eventsource

import (
	"reflect"
	"sync"
)

// topicer lets a concrete event type override the default, reflection-derived
// topic string.
type topicer interface {
	EventType() string
}

var (
	registryMu  sync.RWMutex
	typeToTopic = map[reflect.Type]string{}
	topicToType = map[string]reflect.Type{}
)

// indirectType strips one level of pointer indirection, mirroring how
// Register and EventType are used with both values and pointers.
func indirectType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// EventType returns the stable wire topic for event, registering it against
// the registry on first use. If event implements topicer, that value is
// used verbatim instead of the reflection-derived "<pkg-path>#<type-name>"
// form.
func EventType(event interface{}) (string, error) {
	if te, ok := event.(topicer); ok {
		topic := te.EventType()
		if err := bind(topic, reflect.TypeOf(event)); err != nil {
			return "", err
		}
		return topic, nil
	}

	t := indirectType(reflect.TypeOf(event))
	topic := t.PkgPath() + "#" + t.Name()
	if err := bind(topic, t); err != nil {
		return "", err
	}
	return topic, nil
}

// bind records the topic<->type association, failing if topic is already
// bound to a different type.
func bind(topic string, t reflect.Type) error {
	t = indirectType(t)

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := topicToType[topic]; ok && existing != t {
		return &TopicResolutionError{Topic: topic}
	}
	topicToType[topic] = t
	typeToTopic[t] = topic
	return nil
}

// Register eagerly binds topics for the given event prototypes; used by
// NewJSONSerializer so UnmarshalEvent can resolve topics it has never seen
// MarshalEvent called for.
func Register(prototypes ...interface{}) error {
	for _, prototype := range prototypes {
		if _, err := EventType(prototype); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps a topic string back to its registered reflect.Type, failing
// with TopicResolutionError if the topic was never bound.
func resolve(topic string) (reflect.Type, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := topicToType[topic]
	if !ok {
		return nil, &TopicResolutionError{Topic: topic}
	}
	return t, nil
}

// ResetRegistry clears the process-wide topic registry. For test isolation
// only.
func ResetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	typeToTopic = map[reflect.Type]string{}
	topicToType = map[string]reflect.Type{}
}
