package eventsource

import "testing"

type widget struct {
	Root
	Name  string
	Count int
}

func (w *widget) Root() *Root { return &w.Root }

func (w *widget) On(event Event) error {
	switch e := event.(type) {
	case *Created:
	case *AttributeChanged:
		return ApplyAttributeChanged(w, e)
	case *Discarded:
	default:
		return ErrUnhandledEvent
	}
	return nil
}

func TestApplyAttributeChangedSetsStringField(t *testing.T) {
	w := &widget{}
	event := &AttributeChanged{Name: "Name", Value: "gizmo"}
	if err := ApplyAttributeChanged(w, event); err != nil {
		t.Fatalf("ApplyAttributeChanged: %v", err)
	}
	if w.Name != "gizmo" {
		t.Fatalf("Name = %q; want %q", w.Name, "gizmo")
	}
}

func TestApplyAttributeChangedDecodesWeaklyTypedNumber(t *testing.T) {
	w := &widget{}
	// Simulates a value that survived a JSON round trip: numbers decode as float64.
	event := &AttributeChanged{Name: "Count", Value: float64(42)}
	if err := ApplyAttributeChanged(w, event); err != nil {
		t.Fatalf("ApplyAttributeChanged: %v", err)
	}
	if w.Count != 42 {
		t.Fatalf("Count = %d; want 42", w.Count)
	}
}

func TestApplyAttributeChangedRejectsUnknownField(t *testing.T) {
	w := &widget{}
	event := &AttributeChanged{Name: "DoesNotExist", Value: "x"}
	if err := ApplyAttributeChanged(w, event); err == nil {
		t.Fatal("expected an error for an unknown field name")
	}
}

func TestApplyAttributeChangedRejectsNonPointerTarget(t *testing.T) {
	event := &AttributeChanged{Name: "Name", Value: "x"}
	if err := ApplyAttributeChanged(widget{}, event); err == nil {
		t.Fatal("expected an error for a non-pointer target")
	}
}
