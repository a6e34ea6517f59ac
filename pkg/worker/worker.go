// Package worker binds queue consumption to the download executor. A worker
// is the long-running consumer side of the pipeline: it pulls jobs off the
// queue one at a time, runs the download, and decides the message fate.
//
// A download failure that the executor reports (bad URL, transfer error,
// disk full) is a terminal outcome for that delivery and the message is
// acknowledged; retrying it would repeat the same failure. Only errors that
// the executor could not handle, such as a panic in the download path, cause
// a negative acknowledgement so the job is redelivered.
package worker

import (
	"context"
	"fmt"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/downloader"
	"github.com/nickmerrett/iso-downloader/pkg/model"
	"github.com/nickmerrett/iso-downloader/pkg/queue"
)

// Worker consumes jobs and executes downloads until stopped.
type Worker struct {
	queue    queue.Queue
	executor downloader.Executor
}

// New creates a worker over the given queue and executor.
func New(q queue.Queue, exec downloader.Executor) *Worker {
	return &Worker{queue: q, executor: exec}
}

// Run consumes jobs until ctx is cancelled, then returns nil. Any other
// consume error is returned as is.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Worker started")

	err := w.queue.Consume(ctx, w.handle)
	if err != nil && ctx.Err() != nil {
		logger.Info("Worker stopped")
		return nil
	}
	return err
}

// Close releases the underlying queue connection.
func (w *Worker) Close() error {
	return w.queue.Close()
}

func (w *Worker) handle(ctx context.Context, job model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Download panicked, requeueing job", logger.Fields{
				"job":   job.Name,
				"panic": fmt.Sprintf("%v", r),
			})
			err = fmt.Errorf("download panicked: %v", r)
		}
	}()

	logger.Info("Processing download job", logger.Fields{
		"job":  job.Name,
		"url":  job.URL,
		"type": string(job.Type),
	})

	outcome := w.executor.Execute(ctx, job)
	logOutcome(outcome)

	// A reported failure is final for this delivery; acknowledge it so the
	// queue does not redeliver a job that will fail the same way again.
	return nil
}

func logOutcome(o model.Outcome) {
	if o.Success {
		logger.Success("Download complete", logger.Fields{
			"job":        o.JobName,
			"filepath":   o.Filepath,
			"size_bytes": o.SizeBytes,
			"speed_mbps": fmt.Sprintf("%.2f", o.SpeedMBps),
		})
		return
	}
	logger.Error("Download failed", logger.Fields{
		"job":   o.JobName,
		"error": o.Error,
	})
}
