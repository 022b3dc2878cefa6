package eventsource

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// TestConcurrentAppendAtSamePositionOnlyOneWins drives several goroutines
// racing to append the same (sequence_id, position) pair through a shared
// Store and confirms exactly one succeeds.
func TestConcurrentAppendAtSamePositionOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	seed := &counter{}
	now := time.Now()
	if _, err := Create(seed, "concurrent-agg-1", counterTopic, &counterCreated{Seed: 0}, now); err != nil {
		t.Fatalf("Create: %v", err)
	}
	creation := seed.Root().Pending()[0]
	if err := store.Append(ctx, creation); err != nil {
		t.Fatalf("Append creation: %v", err)
	}

	const attempts = 8
	var g errgroup.Group
	successes := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			root := &Root{id: "concurrent-agg-1", version: 1, headHash: creation.EventHash()}
			event := &counterIncremented{By: i}
			if err := setEnvelope(event, root, "", now); err != nil {
				return err
			}
			err := store.Append(ctx, event)
			if err == nil {
				successes <- struct{}{}
				return nil
			}
			if IsConcurrencyError(err) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error from concurrent appends: %v", err)
	}
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("got %d successful concurrent appends at the same position; want exactly 1", count)
	}

	events, err := store.IterEvents(ctx, "concurrent-agg-1", IterOptions{Ascending: true})
	if err != nil {
		t.Fatalf("IterEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d stored events; want 2 (creation + exactly one winner)", len(events))
	}
}
