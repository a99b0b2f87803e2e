package live

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// LoadFunc produces the full result of a query.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// MatchFunc reports whether a change can alter a query's result.
type MatchFunc func(Change) bool

// Table matches every change to the named table.
func Table(name string) MatchFunc {
	return func(c Change) bool { return c.Table == name }
}

// Row matches changes to a single row of the named table.
func Row(name string, id int64) MatchFunc {
	return func(c Change) bool { return c.Table == name && c.ID == id }
}

// Query is a read that can be run once or observed continuously.
type Query[T any] struct {
	tracker *Tracker
	load    LoadFunc[T]
	match   MatchFunc
}

// NewQuery binds a loader and its match rule to a tracker.
func NewQuery[T any](tracker *Tracker, load LoadFunc[T], match MatchFunc) *Query[T] {
	return &Query[T]{tracker: tracker, load: load, match: match}
}

// Get runs the query once.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	return q.load(ctx)
}

// Subscribe starts observing the query. The first value on C() is the current
// result; every later commit that affects the query adds exactly one more.
// Cancelling ctx has the same effect as calling Close.
func (q *Query[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		id:     uuid.NewString(),
		query:  q,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan T),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	// Hold the commit lock so no write lands between the initial snapshot and
	// registration.
	q.tracker.commitMu.Lock()
	initial, err := q.load(ctx)
	if err != nil {
		q.tracker.commitMu.Unlock()
		cancel()
		return nil, fmt.Errorf("loading initial result: %w", err)
	}
	s.pending = append(s.pending, initial)
	q.tracker.add(s.id, s)
	q.tracker.commitMu.Unlock()

	go s.run()
	return s, nil
}

func (q *Query[T]) affectedBy(changes []Change) bool {
	for _, c := range changes {
		if q.match(c) {
			return true
		}
	}
	return false
}
