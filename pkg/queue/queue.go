// Package queue distributes download jobs with at-least-once semantics. The
// durable implementation is a RabbitMQ client; a single-process in-memory
// implementation with the same contract is used when the broker is
// unreachable.
package queue

import (
	"context"

	"github.com/nickmerrett/iso-downloader/pkg/model"
)

// Backend identifies which queue implementation is active. Operators need
// this to tell whether published jobs survive a process restart.
type Backend string

const (
	// BackendAMQP is the durable RabbitMQ-backed queue.
	BackendAMQP Backend = "amqp"
	// BackendMemory is the in-process fallback; jobs are lost on restart
	// and invisible to other processes.
	BackendMemory Backend = "memory"
)

// Handler processes one delivered job. A nil return acknowledges the
// message; an error negative-acknowledges it with requeue.
type Handler func(ctx context.Context, job model.Job) error

// Info describes the queue state. Introspection only, no side effects.
type Info struct {
	Pending   int
	Consumers int
	Backend   Backend
}

// Queue is the job distribution contract shared by both implementations.
type Queue interface {
	// Publish enqueues one job for delivery.
	Publish(ctx context.Context, job model.Job) error

	// Consume blocks, delivering jobs to handler one at a time until ctx is
	// cancelled. At most one unacknowledged job is in flight per consumer.
	Consume(ctx context.Context, handler Handler) error

	// Info reports pending and consumer counts and the active backend.
	Info(ctx context.Context) (Info, error)

	// Close releases the queue connection.
	Close() error
}
