package queue

import (
	"context"
	"sync"
	"time"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/model"
)

// DefaultPollInterval bounds how long an idle in-memory consumer waits
// before checking for new jobs.
const DefaultPollInterval = time.Second

// MemoryQueue is the single-process fallback: a FIFO buffer with the same
// ack/requeue contract as the broker-backed queue. Jobs do not survive a
// process restart.
type MemoryQueue struct {
	pollInterval time.Duration

	mu        sync.Mutex
	jobs      []model.Job
	consumers int
	closed    bool
}

// NewMemory creates an in-memory queue. A zero pollInterval uses
// DefaultPollInterval.
func NewMemory(pollInterval time.Duration) *MemoryQueue {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &MemoryQueue{pollInterval: pollInterval}
}

// Publish implements Queue.
func (q *MemoryQueue) Publish(_ context.Context, job model.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	logger.Info("Queued download job", logger.Fields{"job": job.Name})
	return nil
}

// Consume implements Queue. Delivery is one job at a time; a handler error
// requeues the job at the tail of the buffer.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.ErrQueueClosed
	}
	q.consumers++
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.consumers--
		q.mu.Unlock()
	}()

	logger.Info("Started consuming messages from in-memory queue")

	for {
		job, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.pollInterval):
				continue
			}
		}

		if err := handler(ctx, job); err != nil {
			logger.Error("Error processing message, requeueing", logger.Fields{
				"job":   job.Name,
				"error": err.Error(),
			})
			q.requeue(job)
			continue
		}
		logger.Debug("Processed message", logger.Fields{"job": job.Name})

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// Info implements Queue.
func (q *MemoryQueue) Info(_ context.Context) (Info, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Info{
		Pending:   len(q.jobs),
		Consumers: q.consumers,
		Backend:   BackendMemory,
	}, nil
}

// Close implements Queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	logger.Info("Disconnected from in-memory queue")
	return nil
}

func (q *MemoryQueue) pop() (model.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return model.Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

func (q *MemoryQueue) requeue(job model.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.jobs = append(q.jobs, job)
	}
}

var _ Queue = (*MemoryQueue)(nil)
