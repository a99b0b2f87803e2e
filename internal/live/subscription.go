package live

import (
	"context"
	"sync"
)

// Subscription delivers a query's results to one consumer.
//
// Results are queued without bound, so a writer never waits on a slow
// consumer. A single goroutine drains the queue into C(), which keeps
// deliveries to this consumer strictly ordered.
type Subscription[T any] struct {
	id     string
	query  *Query[T]
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []T
	err     error

	out       chan T
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ID identifies the subscription in logs.
func (s *Subscription[T]) ID() string { return s.id }

// C returns the delivery channel. It is closed once the subscription ends.
func (s *Subscription[T]) C() <-chan T { return s.out }

// Err returns the reload error that ended the subscription, if any.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops delivery and releases the subscription's tracker slot. Results
// still queued are discarded. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.query.tracker.remove(s.id)
	})
}

// notify runs on the committing goroutine with the tracker's commit lock held.
func (s *Subscription[T]) notify(changes []Change) {
	if !s.query.affectedBy(changes) {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	v, err := s.query.load(s.ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.query.tracker.logger.Error("live query reload failed",
				"subscription", s.id,
				"error", err,
			)
		}
		s.Close()
		return
	}

	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) next() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.pending) == 0 {
		return zero, false
	}
	v := s.pending[0]
	s.pending[0] = zero
	s.pending = s.pending[1:]
	return v, true
}

func (s *Subscription[T]) run() {
	defer close(s.out)

	for {
		v, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			case <-s.ctx.Done():
				s.Close()
				return
			}
		}

		select {
		case s.out <- v:
		case <-s.done:
			return
		case <-s.ctx.Done():
			s.Close()
			return
		}
	}
}
