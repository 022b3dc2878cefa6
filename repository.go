package eventsource

import (
	"context"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"
	"golang.org/x/xerrors"
)

// Repository is the primary application-facing entry point: it loads an
// aggregate by replaying its history through a Store, and saves newly
// triggered events back through the same Store, fanning them out to any
// registered observers only once every event in the batch has been
// accepted.
type Repository struct {
	prototype       reflect.Type
	originatorTopic string
	store           *Store
	observers       []func(Event)
	logger          logr.Logger
}

// Option provides functional configuration for a *Repository.
type Option func(*Repository)

// WithDebug is a thin compatibility wrapper over WithLogger: it installs a
// logger over sink, which then receives one line per Load/Save at
// verbosity 1. Prefer WithLogger directly when a real sink is available.
func WithDebug(sink logr.LogSink) Option {
	return func(r *Repository) {
		r.logger = logr.New(sink)
	}
}

// WithLogger installs logger for Load/Save diagnostics. The default is
// logr.Discard(), matching the library's no-op-unless-configured stance.
func WithLogger(logger logr.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithStore overrides the default in-memory Store.
func WithStore(store *Store) Option {
	return func(r *Repository) {
		r.store = store
	}
}

// WithSerializer overrides the Store's Serializer by rebuilding it over the
// same RecordManager. WithStore replaces the whole Store, so pass
// WithSerializer after WithStore if both are given, or simply pass a fully
// constructed Store via WithStore instead.
func WithSerializer(serializer Serializer) Option {
	return func(r *Repository) {
		if r.store == nil {
			r.store = NewStore(serializer, NewMemoryRecordManager())
			return
		}
		r.store = NewStore(serializer, r.store.records)
	}
}

// WithObservers registers observers to be invoked, in registration order,
// once for every event in a successful Save. Observers should return
// quickly: Save blocks until every observer has run.
func WithObservers(observers ...func(event Event)) Option {
	return func(r *Repository) {
		r.observers = append(r.observers, observers...)
	}
}

// New constructs a Repository for the aggregate type prototype represents.
// By default it uses an in-memory Store with a JSONSerializer; supply
// WithStore for a durable backend.
func New(prototype Aggregate, opts ...Option) *Repository {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r := &Repository{
		prototype:       t,
		originatorTopic: t.PkgPath() + "#" + t.Name(),
		store:           NewStore(NewJSONSerializer(), NewMemoryRecordManager()),
		logger:          logr.Discard(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// OriginatorTopic returns the topic this Repository expects the creation
// event of every aggregate it manages to carry.
func (r *Repository) OriginatorTopic() string {
	return r.originatorTopic
}

func (r *Repository) newAggregate() Aggregate {
	return reflect.New(r.prototype).Interface().(Aggregate)
}

// New returns a freshly constructed, empty instance of the managed
// aggregate type, useful for dispatching creation commands.
func (r *Repository) New() Aggregate {
	return r.newAggregate()
}

// Load rehydrates the aggregate identified by aggregateID by reading its
// full history, oldest first, and folding each event through Apply. It
// fails with *RepositoryKeyError if no events exist for aggregateID or if
// the most recently applied event discarded the aggregate.
func (r *Repository) Load(ctx context.Context, aggregateID string) (Aggregate, error) {
	it := r.store.IterEventsPaged(ctx, aggregateID, IterOptions{Ascending: true, PageSize: 256})

	aggregate := r.newAggregate()
	count := 0
	for {
		event, ok, err := it.Next(ctx)
		if err != nil {
			return nil, xerrors.Errorf("eventsource: loading %v: %w", aggregateID, err)
		}
		if !ok {
			break
		}
		if count == 0 {
			topic := ""
			if ot, ok := event.(interface{ OriginatorTopic() string }); ok {
				topic = ot.OriginatorTopic()
			}
			if topic != r.originatorTopic {
				return nil, &TopicResolutionError{Topic: topic}
			}
		}
		// Apply checks the chain link before CheckHash runs, so a broken
		// previous_hash reports as *HeadHashError rather than *EventHashError.
		if err := Apply(aggregate, event); err != nil {
			return nil, xerrors.Errorf("eventsource: applying %T to %v: %w", event, aggregateID, err)
		}
		if err := CheckHash(event); err != nil {
			return nil, xerrors.Errorf("eventsource: loading %v: %w", aggregateID, err)
		}
		count++
	}

	if count == 0 {
		return nil, &RepositoryKeyError{SequenceID: aggregateID}
	}
	if aggregate.Root().IsDiscarded() {
		return nil, &RepositoryKeyError{SequenceID: aggregateID}
	}

	r.logger.V(1).Info("loaded aggregate", "aggregateID", aggregateID, "events", count, "version", aggregate.Root().Version())
	return aggregate, nil
}

// Contains reports whether an aggregate exists and has not been discarded,
// without returning the rehydrated state.
func (r *Repository) Contains(ctx context.Context, aggregateID string) (bool, error) {
	_, err := r.Load(ctx, aggregateID)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Save appends events to the store and, once every event in the batch has
// been accepted, fans them out to registered observers. It is the caller's
// responsibility to pass events in version order (TriggerEvent's pending
// buffer already guarantees this).
func (r *Repository) Save(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		if err := r.store.Append(ctx, event); err != nil {
			return xerrors.Errorf("eventsource: saving %v: %w", event.AggregateID(), err)
		}
	}

	r.logger.V(1).Info("saved events", "aggregateID", events[0].AggregateID(), "count", len(events))

	for _, event := range events {
		for _, observer := range r.observers {
			observer(event)
		}
	}
	return nil
}

// SaveAndClear saves state's pending events and, only on success, clears
// the buffer so a subsequent TriggerEvent starts a fresh batch.
func (r *Repository) SaveAndClear(ctx context.Context, state Aggregate) error {
	root := state.Root()
	pending := root.Pending()
	if err := r.Save(ctx, pending...); err != nil {
		return err
	}
	root.clearPending()
	return nil
}

// Apply loads the aggregate command targets (or starts a new one if none
// exists yet), dispatches command to it via CommandHandler, saves the
// resulting events, and returns the aggregate's version after saving.
func (r *Repository) Apply(ctx context.Context, command Command) (int, error) {
	if command == nil {
		return 0, fmt.Errorf("eventsource: command may not be nil")
	}
	aggregateID := command.AggregateID()
	if aggregateID == "" {
		return 0, fmt.Errorf("eventsource: command's AggregateID may not be blank")
	}

	aggregate, err := r.Load(ctx, aggregateID)
	if err != nil {
		if !IsNotFound(err) {
			return 0, err
		}
		aggregate = r.newAggregate()
	}

	handler, ok := aggregate.(CommandHandler)
	if !ok {
		return 0, fmt.Errorf("eventsource: %T does not implement CommandHandler", aggregate)
	}

	events, err := handler.Apply(ctx, command)
	if err != nil {
		return 0, err
	}

	if err := r.Save(ctx, events...); err != nil {
		return 0, err
	}

	return aggregate.Root().Version(), nil
}

// Store returns the underlying Store.
func (r *Repository) Store() *Store {
	return r.store
}
