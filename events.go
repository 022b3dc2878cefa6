package eventsource

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

// Created is the built-in creation-event variant. Aggregates that need
// additional creation payload define their own version-0 event type
// instead; Created suits aggregates whose state is fully derived from their
// id.
type Created struct {
	Model
}

// AttributeChanged is the built-in variant backing generic "set this field
// to this value" replay without a bespoke event type per field.
type AttributeChanged struct {
	Model
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Discarded is the built-in terminal variant. Root recognizes *Discarded by
// type and marks the aggregate discarded once it has been folded in.
type Discarded struct {
	Model
}

// ApplyAttributeChanged decodes event.Value onto the field named event.Name
// of target (a pointer to the embedding aggregate struct), using a weakly
// typed decode so values that survived a JSON round-trip (float64, map, ...)
// land correctly on typed destination fields.
func ApplyAttributeChanged(target interface{}, event *AttributeChanged) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("eventsource: ApplyAttributeChanged target must be a pointer to struct, got %T", target)
	}

	field := v.Elem().FieldByName(event.Name)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("eventsource: %T has no settable field %q", target, event.Name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           field.Addr().Interface(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(event.Value)
}
