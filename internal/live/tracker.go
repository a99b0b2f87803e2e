// Package live pushes query results to subscribers whenever a committed write
// affects them.
//
// Writers run their statements through Tracker.Commit and report the rows they
// touched as Changes. After the write succeeds, every subscription whose query
// is affected reloads its result once and queues the full snapshot for its
// consumer. Commits and reloads share one lock, so each subscriber sees
// snapshots in commit order and never a partial one.
package live

import (
	"context"
	"log/slog"
	"sync"
)

// Op is the kind of write that produced a Change.
type Op string

// Write kinds.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one row touched by a committed write.
type Change struct {
	Table string
	ID    int64
	Op    Op
}

// observer is implemented by subscriptions.
type observer interface {
	notify(changes []Change)
}

// Tracker records active subscriptions and fans committed changes out to them.
type Tracker struct {
	commitMu sync.Mutex

	mu        sync.Mutex
	observers map[string]observer

	logger *slog.Logger
}

// NewTracker creates an empty tracker. A nil logger uses slog.Default().
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		observers: make(map[string]observer),
		logger:    logger,
	}
}

// Commit runs write while holding the commit lock. write returns the rows it
// changed; an empty result (for example an update that matched nothing)
// notifies nobody. Affected subscriptions are refreshed before Commit returns.
func (t *Tracker) Commit(ctx context.Context, write func(ctx context.Context) ([]Change, error)) error {
	t.commitMu.Lock()
	defer t.commitMu.Unlock()

	changes, err := write(ctx)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	for _, o := range t.current() {
		o.notify(changes)
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (t *Tracker) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.observers)
}

func (t *Tracker) current() []observer {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]observer, 0, len(t.observers))
	for _, o := range t.observers {
		out = append(out, o)
	}
	return out
}

func (t *Tracker) add(id string, o observer) {
	t.mu.Lock()
	t.observers[id] = o
	n := len(t.observers)
	t.mu.Unlock()

	t.logger.Debug("live subscription opened", "subscription", id, "active", n)
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	delete(t.observers, id)
	n := len(t.observers)
	t.mu.Unlock()

	t.logger.Debug("live subscription closed", "subscription", id, "active", n)
}
