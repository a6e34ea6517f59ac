// Package downloader executes download jobs with bounded concurrency. One
// manager owns a process-wide admission gate: no more than MaxParallel
// transfers are in flight at any instant, regardless of how many jobs are
// submitted.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/config"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/fsutil"
	"github.com/nickmerrett/iso-downloader/pkg/model"
	"github.com/nickmerrett/iso-downloader/pkg/rsync"
)

// Manager is the download executor.
type Manager struct {
	cfg     config.DownloadConfig
	client  *http.Client
	fetcher Fetcher
	hooks   HookExecutor

	gate   chan struct{}
	active atomic.Int32
}

// NewManager creates a manager using the system rsync binary for
// rsync-transport jobs.
func NewManager(cfg config.DownloadConfig) *Manager {
	return newManager(cfg, rsync.New())
}

// NewManagerWithFetcher creates a manager with a custom rsync fetcher, used
// by tests.
func NewManagerWithFetcher(cfg config.DownloadConfig, fetcher Fetcher) *Manager {
	return newManager(cfg, fetcher)
}

func newManager(cfg config.DownloadConfig, fetcher Fetcher) *Manager {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = config.DefaultMaxParallel
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = config.DefaultChunkSize
	}
	return &Manager{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout()},
		fetcher: fetcher,
		hooks:   NewHookExecutor(),
		gate:    make(chan struct{}, cfg.MaxParallel),
	}
}

// Active returns the number of transfers currently in flight.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Execute implements Executor. The call blocks until an admission slot is
// free.
func (m *Manager) Execute(ctx context.Context, job model.Job) model.Outcome {
	select {
	case m.gate <- struct{}{}:
	case <-ctx.Done():
		return model.Failure(job, "", ctx.Err())
	}
	defer func() { <-m.gate }()

	m.active.Add(1)
	defer m.active.Add(-1)

	destDir := job.DestinationDir
	if destDir == "" {
		destDir = m.cfg.DownloadDirectory
	}

	var outcome model.Outcome
	switch job.Type {
	case model.TransportHTTP:
		outcome = m.executeHTTP(ctx, job, destDir)
	case model.TransportRsync:
		outcome = m.executeRsync(ctx, job, destDir)
	default:
		outcome = model.Failure(job, "", errors.Wrapf(errors.ErrUnsupportedTransport, "%s", job.Type))
	}

	outcome.JobName = job.Name
	outcome.Type = job.Type
	outcome.DestinationDir = destDir

	if outcome.Success {
		m.postProcess(ctx, job, &outcome)
	}
	return outcome
}

func (m *Manager) executeHTTP(ctx context.Context, job model.Job, destDir string) model.Outcome {
	filename := jobFilename(job)
	if err := fsutil.EnsureDir(destDir); err != nil {
		return model.Failure(job, "", errors.Wrap(err, "could not create download dir"))
	}
	dest := filepath.Join(destDir, filename)

	logger.Info("Starting HTTP download", logger.Fields{"job": job.Name, "url": job.URL})
	start := time.Now()

	downloaded, err := m.streamHTTP(ctx, job.URL, dest)
	if err != nil {
		removePartial(dest)
		return model.Failure(job, dest, err)
	}

	elapsed := time.Since(start)
	outcome := model.Outcome{
		Success:   true,
		Filepath:  dest,
		SizeBytes: downloaded,
		SpeedMBps: model.SpeedMBps(downloaded, elapsed),
		Duration:  elapsed,
	}
	logger.Info("HTTP download completed", logger.Fields{
		"job":        job.Name,
		"size_bytes": downloaded,
		"speed_mbps": outcome.SpeedMBps,
	})
	return outcome
}

// streamHTTP copies the response body to dest in chunks of the configured
// size and returns the number of bytes written.
func (m *Manager) streamHTTP(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create request")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "download failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.Wrapf(errors.ErrUnexpectedStatus, "GET %s returned %d", url, resp.StatusCode)
	}

	file, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return 0, errors.Wrap(err, "could not create file")
	}

	buf := make([]byte, m.cfg.ChunkSize)
	downloaded, err := io.CopyBuffer(file, resp.Body, buf)
	if err != nil {
		_ = file.Close()
		return downloaded, errors.Wrap(err, "could not write file")
	}
	if err := file.Close(); err != nil {
		return downloaded, errors.Wrap(err, "could not close file")
	}
	return downloaded, nil
}

func (m *Manager) executeRsync(ctx context.Context, job model.Job, destDir string) model.Outcome {
	filename := jobFilename(job)
	if err := fsutil.EnsureDir(destDir); err != nil {
		return model.Failure(job, "", errors.Wrap(err, "could not create download dir"))
	}
	dest := filepath.Join(destDir, filename)

	logger.Info("Starting rsync download", logger.Fields{"job": job.Name, "url": job.URL})
	start := time.Now()

	if err := m.fetcher.Fetch(ctx, job.URL, dest); err != nil {
		removePartial(dest)
		return model.Failure(job, dest, err)
	}

	elapsed := time.Since(start)
	var size int64
	if st, err := os.Stat(dest); err == nil {
		size = st.Size()
	}
	outcome := model.Outcome{
		Success:   true,
		Filepath:  dest,
		SizeBytes: size,
		SpeedMBps: model.SpeedMBps(size, elapsed),
		Duration:  elapsed,
	}
	logger.Info("Rsync download completed", logger.Fields{
		"job":        job.Name,
		"size_bytes": size,
		"speed_mbps": outcome.SpeedMBps,
	})
	return outcome
}

// postProcess applies optional decompression and the post-download hook.
// A post-processing failure marks the outcome failed but keeps the
// downloaded file.
func (m *Manager) postProcess(ctx context.Context, job model.Job, outcome *model.Outcome) {
	if m.cfg.Decompress {
		unpacked, err := Decompress(ctx, outcome.Filepath)
		if err != nil {
			logger.Error("Decompression failed", logger.Fields{"job": job.Name, "error": err.Error()})
			outcome.Success = false
			outcome.Error = err.Error()
			return
		}
		if unpacked != outcome.Filepath {
			outcome.Filepath = unpacked
			if st, err := os.Stat(unpacked); err == nil {
				outcome.SizeBytes = st.Size()
			}
		}
	}

	if m.cfg.PostHook != "" {
		hctx := &HookContext{
			JobName:   job.Name,
			URL:       job.URL,
			Filepath:  outcome.Filepath,
			SizeBytes: outcome.SizeBytes,
		}
		if err := m.hooks.ExecuteHook(m.cfg.PostHook, hctx); err != nil {
			logger.Error("Post-download hook failed", logger.Fields{"job": job.Name, "error": err.Error()})
			outcome.Success = false
			outcome.Error = err.Error()
		}
	}
}

// jobFilename picks the local filename for a job: the job name when set,
// otherwise the URL basename.
func jobFilename(job model.Job) string {
	if job.Name != "" {
		return job.Name
	}
	return path.Base(job.URL)
}

func removePartial(dest string) {
	if _, err := os.Stat(dest); err == nil {
		_ = os.Remove(dest)
	}
}

var _ Executor = (*Manager)(nil)
