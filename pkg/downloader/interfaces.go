//go:generate mockgen -package mocks -destination=./mocks/downloader.go . Executor
package downloader

import (
	"context"

	"github.com/nickmerrett/iso-downloader/pkg/model"
)

// Executor runs one download job to completion. It never fails past its own
// boundary: every error is captured in the returned outcome.
type Executor interface {
	Execute(ctx context.Context, job model.Job) model.Outcome
}

// Fetcher abstracts the rsync transfer command so executor tests can run
// without the binary.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}
