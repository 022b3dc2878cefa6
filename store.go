package eventsource

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// noPosition signals "no expected position" to RecordManager.Append: used
// for the creation event, which has nothing to be positioned after.
const noPosition = -1

// ReadOptions bounds a RecordManager.Read call.
type ReadOptions struct {
	// After excludes positions at or before this value (strict on ascending
	// reads, symmetric on descending reads).
	After *int

	// Until caps positions at or below this value.
	Until *int

	// Limit caps the number of records returned; 0 means unbounded.
	Limit int

	// Ascending selects sort direction.
	Ascending bool
}

// RecordManager is the abstract, backend-agnostic append-only log a Store is
// built on. Concrete persistence backends (relational, columnar, in-memory,
// ...) are external collaborators; only this contract lives in the core.
type RecordManager interface {
	// Append writes record atomically against the per-sequence position
	// check: it must fail with *ConcurrencyError when newPosition is already
	// stored, or when expectedPosition is not yet stored (a gap).
	// expectedPosition is noPosition for the creation event.
	Append(ctx context.Context, record Record, expectedPosition, newPosition int) error

	// Read returns records for sequenceID matching opts, ordered by
	// position in the requested direction.
	Read(ctx context.Context, sequenceID string, opts ReadOptions) (History, error)

	// MostRecent returns the highest-position record at or below until (nil
	// means unbounded), or ok=false if none exists.
	MostRecent(ctx context.Context, sequenceID string, until *int) (record *Record, ok bool, err error)

	// Remove erases all records for sequenceID. Backends without hard
	// delete may tombstone instead, provided subsequent reads return empty.
	Remove(ctx context.Context, sequenceID string) error
}

// storeMetrics are the optional prometheus instruments a Store reports
// through; only the Append and Read boundaries are instrumented
// (MostRecentEvent is not measured).
type storeMetrics struct {
	appended           *prometheus.CounterVec
	concurrencyErrors  prometheus.Counter
	readDurationSecond prometheus.Histogram
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	if reg == nil {
		return nil
	}

	m := &storeMetrics{
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eventstore_appended_total",
			Help: "Number of events successfully appended, by topic.",
		}, []string{"topic"}),
		concurrencyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eventstore_concurrency_conflicts_total",
			Help: "Number of appends rejected with a concurrency conflict.",
		}),
		readDurationSecond: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "eventstore_read_duration_seconds",
			Help: "Latency of RecordManager reads issued by the Store.",
		}),
	}
	reg.MustRegister(m.appended, m.concurrencyErrors, m.readDurationSecond)
	return m
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMetrics registers the Store's counters and histogram against reg. A
// nil Registerer (the default) disables metrics entirely.
func WithMetrics(reg prometheus.Registerer) StoreOption {
	return func(s *Store) {
		s.metrics = newStoreMetrics(reg)
	}
}

// Store composes a Serializer and a RecordManager into the event store: the
// single type application code talks to for appending and reading history.
type Store struct {
	mapper  Serializer
	records RecordManager
	metrics *storeMetrics
}

// NewStore constructs a Store over mapper and records.
func NewStore(mapper Serializer, records RecordManager, opts ...StoreOption) *Store {
	s := &Store{mapper: mapper, records: records}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordManager returns the underlying RecordManager, for callers that need
// to inspect or administer raw storage (migrations, tamper tooling, backend
// health checks) outside the Event/Record abstraction.
func (s *Store) RecordManager() RecordManager {
	return s.records
}

// Append serializes event and delegates to the RecordManager's version-
// checked append.
func (s *Store) Append(ctx context.Context, event Event) error {
	record, err := s.mapper.MarshalEvent(event)
	if err != nil {
		return err
	}

	version := event.EventVersion()
	expected := version - 1
	if version == 0 {
		expected = noPosition
	}

	err = s.records.Append(ctx, record, expected, version)
	if s.metrics != nil {
		if err != nil {
			if IsConcurrencyError(err) {
				s.metrics.concurrencyErrors.Inc()
			}
		} else {
			s.metrics.appended.WithLabelValues(record.Topic).Inc()
		}
	}
	return err
}

// IterOptions bounds a Store read.
type IterOptions struct {
	After, Until *int
	Limit        int
	Ascending    bool

	// PageSize, when > 0, routes the read through IterEventsPaged's lazy
	// cursor instead of a single unbounded read.
	PageSize int

	// Short hints that, when Ascending is requested, the backend may be
	// queried descending and the result reversed. Useful when only the last
	// N events are wanted in chronological order: read descending with
	// Limit=N, then flip in memory instead of scanning the whole history.
	Short bool
}

// IterEvents reads and deserializes events for id according to opts.
func (s *Store) IterEvents(ctx context.Context, id string, opts IterOptions) ([]Event, error) {
	if opts.PageSize > 0 {
		it := s.IterEventsPaged(ctx, id, opts)
		var events []Event
		for {
			event, ok, err := it.Next(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return events, nil
			}
			events = append(events, event)
		}
	}

	queryAscending := opts.Ascending
	if opts.Short {
		queryAscending = false
	}

	start := time.Now()
	history, err := s.records.Read(ctx, id, ReadOptions{
		After: opts.After, Until: opts.Until, Limit: opts.Limit, Ascending: queryAscending,
	})
	if s.metrics != nil {
		s.metrics.readDurationSecond.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if opts.Short && opts.Ascending {
		reverseHistory(history)
	}

	events := make([]Event, 0, len(history))
	for _, record := range history {
		event, err := s.mapper.UnmarshalEvent(record)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func reverseHistory(h History) {
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
}

// MostRecentEvent returns the highest-version event for id at or below
// until, or ok=false if none exists.
func (s *Store) MostRecentEvent(ctx context.Context, id string, until *int) (event Event, ok bool, err error) {
	record, ok, err := s.records.MostRecent(ctx, id, until)
	if err != nil || !ok {
		return nil, ok, err
	}
	event, err = s.mapper.UnmarshalEvent(*record)
	return event, true, err
}

// EventIterator is a pull-based, one-shot stream of events that lazily pages
// through storage in chunks, never materializing the full history at once.
type EventIterator interface {
	// Next returns the next event, or ok=false once the stream is exhausted.
	Next(ctx context.Context) (event Event, ok bool, err error)
}

type pagedIterator struct {
	store    *Store
	id       string
	opts     IterOptions
	buffer   []Event
	cursor   *int
	done     bool
	nextHint int
	emitted  int
}

// IterEventsPaged returns a lazy EventIterator that advances an internal
// cursor in chunks of opts.PageSize (defaulting to 100 if unset), never
// materializing more than one page of history at a time. Descending paged
// reads fall back to a single descending Read bounded only by opts.Limit;
// ascending paging is fully lazy.
func (s *Store) IterEventsPaged(ctx context.Context, id string, opts IterOptions) EventIterator {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	var cursor *int
	if opts.After != nil {
		c := *opts.After
		cursor = &c
	}
	return &pagedIterator{store: s, id: id, opts: opts, cursor: cursor, nextHint: pageSize}
}

func (it *pagedIterator) Next(ctx context.Context) (Event, bool, error) {
	if it.opts.Limit > 0 && it.emitted >= it.opts.Limit {
		return nil, false, nil
	}

	if len(it.buffer) == 0 {
		if it.done {
			return nil, false, nil
		}
		if !it.opts.Ascending {
			// Descending paging is served by one full (but still
			// server-side-limited) read; no component in this repository
			// needs true lazy descending pagination.
			events, err := it.store.IterEvents(ctx, it.id, IterOptions{
				After: it.opts.After, Until: it.opts.Until, Limit: it.opts.Limit, Ascending: false,
			})
			if err != nil {
				return nil, false, err
			}
			it.buffer = events
			it.done = true
		} else {
			events, err := it.store.IterEvents(ctx, it.id, IterOptions{
				After: it.cursor, Until: it.opts.Until, Limit: it.nextHint, Ascending: true,
			})
			if err != nil {
				return nil, false, err
			}
			if len(events) < it.nextHint {
				it.done = true
			}
			if len(events) > 0 {
				v := events[len(events)-1].EventVersion()
				it.cursor = &v
			}
			it.buffer = events
		}
		if len(it.buffer) == 0 {
			return nil, false, nil
		}
	}

	event := it.buffer[0]
	it.buffer = it.buffer[1:]
	it.emitted++
	return event, true, nil
}
