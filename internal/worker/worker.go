// Package worker runs jobs one at a time, in submission order, on a single
// background goroutine.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Submit and Drain once the queue has been stopped.
var ErrStopped = errors.New("worker: queue stopped")

// Job is a unit of work executed by a Queue.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
	// OnError receives the error returned by Run. When nil the queue logs it.
	OnError func(error)
}

// Queue is an unbounded FIFO served by one goroutine. Submit never blocks.
type Queue struct {
	name   string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    []Job
	stopped bool
	wake    chan struct{}

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	processed atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a stopped-until-started queue. A nil logger uses slog.Default.
func NewQueue(name string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		name:   name,
		logger: logger.With("queue", name),
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. Calling it more than once is a no-op.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.logger.Debug("starting queue")
		q.wg.Add(1)
		go q.run()
	})
}

// Stop cancels the running job's context, discards queued jobs and waits for
// the worker goroutine to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		dropped := len(q.jobs)
		q.jobs = nil
		q.mu.Unlock()

		q.cancel()
		q.wg.Wait()
		q.logger.Info("queue stopped", "dropped", dropped,
			"processed", q.processed.Load(), "failed", q.failed.Load())
	})
}

// Submit appends a job to the queue.
func (q *Queue) Submit(job Job) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrStopped
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Processed returns the number of jobs that completed without error.
func (q *Queue) Processed() int64 { return q.processed.Load() }

// Failed returns the number of jobs that returned an error.
func (q *Queue) Failed() int64 { return q.failed.Load() }

// Drain blocks until every job submitted before the call has run.
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	err := q.Submit(Job{
		Name: "drain",
		Run: func(context.Context) error {
			close(done)
			return nil
		},
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-q.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs[0] = Job{}
	q.jobs = q.jobs[1:]
	return job, true
}

func (q *Queue) run() {
	defer q.wg.Done()

	for {
		if q.ctx.Err() != nil {
			return
		}
		job, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}
		q.process(job)
	}
}

func (q *Queue) process(job Job) {
	start := time.Now()
	err := job.Run(q.ctx)
	if err == nil {
		q.processed.Add(1)
		q.logger.Debug("job done", "job", job.Name, "duration", time.Since(start))
		return
	}

	q.failed.Add(1)
	if q.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		q.logger.Debug("job cancelled", "job", job.Name)
		return
	}
	if job.OnError != nil {
		job.OnError(err)
		return
	}
	q.logger.Error("job failed", "job", job.Name, "error", err)
}
