package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsJobsInOrder(t *testing.T) {
	q := NewQueue("test", nil)
	q.Start()
	defer q.Stop()

	var mu sync.Mutex
	var order []int
	for i := range 20 {
		err := q.Submit(Job{Name: "append", Run: func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 20 {
		t.Fatalf("expected 20 jobs, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
	if q.Processed() != 21 { // 20 jobs plus the drain barrier
		t.Errorf("expected 21 processed, got %d", q.Processed())
	}
}

func TestQueueJobsDoNotOverlap(t *testing.T) {
	q := NewQueue("test", nil)
	q.Start()
	defer q.Stop()

	var running, maxRunning int
	var mu sync.Mutex
	for range 10 {
		q.Submit(Job{Run: func(context.Context) error {
			mu.Lock()
			running++
			maxRunning = max(maxRunning, running)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}})
	}
	q.Drain(context.Background())

	if maxRunning != 1 {
		t.Errorf("expected at most one job at a time, saw %d", maxRunning)
	}
}

func TestQueueSubmitDoesNotBlock(t *testing.T) {
	q := NewQueue("test", nil)
	defer q.Stop()

	// Not started: every submission must still return immediately.
	done := make(chan struct{})
	go func() {
		for range 10000 {
			q.Submit(Job{Run: func(context.Context) error { return nil }})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked")
	}
	if q.Len() != 10000 {
		t.Errorf("expected 10000 queued jobs, got %d", q.Len())
	}
}

func TestQueueErrorHandler(t *testing.T) {
	q := NewQueue("test", nil)
	q.Start()
	defer q.Stop()

	boom := errors.New("boom")
	got := make(chan error, 1)
	q.Submit(Job{
		Name:    "failing",
		Run:     func(context.Context) error { return boom },
		OnError: func(err error) { got <- err },
	})

	select {
	case err := <-got:
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}

	// The queue keeps going after a failure.
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain after failure: %v", err)
	}
	if q.Failed() != 1 {
		t.Errorf("expected 1 failed job, got %d", q.Failed())
	}
}

func TestQueueStopDiscardsPending(t *testing.T) {
	q := NewQueue("test", nil)
	q.Start()

	started := make(chan struct{})
	var ranAfter bool
	q.Submit(Job{Name: "blocking", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	q.Submit(Job{Name: "pending", Run: func(context.Context) error {
		ranAfter = true
		return nil
	}})

	<-started
	q.Stop()

	if ranAfter {
		t.Error("queued job ran after Stop")
	}
	if err := q.Submit(Job{Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if err := q.Drain(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped from Drain, got %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestQueueDrainHonoursContext(t *testing.T) {
	q := NewQueue("test", nil)
	defer q.Stop()

	// Never started, so the barrier cannot run.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
