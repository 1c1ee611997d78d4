package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned for jobs submitted after the queue has stopped.
var ErrStopped = errors.New("write queue stopped")

// Job is one unit of durable-store work.
type Job func(ctx context.Context) error

type pending struct {
	job    Job
	result chan error
}

// Queue executes jobs strictly in submission order on a single worker
// goroutine. Within the queue there is at most one in-flight job, which
// is what lets the store's watermark guard assume ordered writes per
// table. Reads do not go through the queue.
type Queue struct {
	jobs   chan pending
	stopCh chan struct{}
	doneCh chan struct{}
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
}

// New creates a write queue with the given buffer size.
func New(buffer int, logger *slog.Logger) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		jobs:   make(chan pending, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: logger,
	}
}

// Start begins the worker loop.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running || q.stopped {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.run(ctx)
}

// Stop drains already-submitted jobs and then stops the worker. Jobs
// submitted after Stop fail with ErrStopped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	running := q.running
	q.mu.Unlock()

	close(q.stopCh)
	if running {
		<-q.doneCh
	}
}

// Submit enqueues a job and returns a future for its result.
//
// The stopped check and the enqueue happen under one critical section:
// a submit racing Stop must either land in the buffer before the drain
// runs or fail with ErrStopped, never sit in the buffer unresolved. A
// blocked enqueue holding the mutex also blocks Stop, so the worker is
// still consuming and the send always completes.
func (q *Queue) Submit(job Job) <-chan error {
	result := make(chan error, 1)

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		result <- ErrStopped
		return result
	}
	q.jobs <- pending{job: job, result: result}
	q.mu.Unlock()

	return result
}

// SubmitWait enqueues a job and blocks until it has executed. This is for
// the few places where a strict ordering against subsequent steps is
// required, such as the flush before a reset.
func (q *Queue) SubmitWait(ctx context.Context, job Job) error {
	select {
	case err := <-q.Submit(job):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.doneCh)

	for {
		select {
		case <-q.stopCh:
			q.drain(ctx)
			return
		case <-ctx.Done():
			q.drain(ctx)
			return
		case p := <-q.jobs:
			p.result <- p.job(ctx)
		}
	}
}

// drain executes whatever was already queued so a shutdown save is not
// silently discarded.
func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case p := <-q.jobs:
			p.result <- p.job(ctx)
		default:
			return
		}
	}
}
