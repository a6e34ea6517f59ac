package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickmerrett/iso-downloader/pkg/config"
	"github.com/nickmerrett/iso-downloader/pkg/model"
)

type fakeFetcher struct {
	mu      sync.Mutex
	err     error
	content []byte
	partial []byte
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, destPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		if len(f.partial) > 0 {
			_ = os.WriteFile(destPath, f.partial, 0o644)
		}
		return f.err
	}
	return os.WriteFile(destPath, f.content, 0o644)
}

func testDownloadConfig(dir string) config.DownloadConfig {
	return config.DownloadConfig{
		MaxParallel:       3,
		DownloadDirectory: dir,
		ChunkSize:         1024,
		TimeoutSeconds:    10,
	}
}

func TestExecuteHTTPSuccess(t *testing.T) {
	content := []byte("pretend this is an iso image")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewManagerWithFetcher(testDownloadConfig(dir), &fakeFetcher{})

	job := model.Job{Name: "test.iso", URL: server.URL + "/test.iso", Type: model.TransportHTTP}
	outcome := m.Execute(context.Background(), job)

	require.True(t, outcome.Success, "unexpected failure: %s", outcome.Error)
	assert.Equal(t, "test.iso", outcome.JobName)
	assert.Equal(t, filepath.Join(dir, "test.iso"), outcome.Filepath)
	assert.Equal(t, int64(len(content)), outcome.SizeBytes)
	assert.Equal(t, dir, outcome.DestinationDir)

	got, err := os.ReadFile(outcome.Filepath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestExecuteHTTPDestinationOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	defaultDir := t.TempDir()
	override := filepath.Join(t.TempDir(), "nested", "isos")
	m := NewManagerWithFetcher(testDownloadConfig(defaultDir), &fakeFetcher{})

	job := model.Job{
		Name:           "a.iso",
		URL:            server.URL + "/a.iso",
		Type:           model.TransportHTTP,
		DestinationDir: override,
	}
	outcome := m.Execute(context.Background(), job)

	require.True(t, outcome.Success)
	assert.Equal(t, filepath.Join(override, "a.iso"), outcome.Filepath)
	assert.FileExists(t, outcome.Filepath)

	entries, err := os.ReadDir(defaultDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "default dir must stay untouched when the job overrides it")
}

func TestExecuteHTTPFailureRemovesPartialFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("only a fragment"))
		// Hijack and drop the connection mid-body.
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewManagerWithFetcher(testDownloadConfig(dir), &fakeFetcher{})

	job := model.Job{Name: "broken.iso", URL: server.URL + "/broken.iso", Type: model.TransportHTTP}
	outcome := m.Execute(context.Background(), job)

	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Error)
	assert.NoFileExists(t, filepath.Join(dir, "broken.iso"))
}

func TestExecuteHTTPNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewManagerWithFetcher(testDownloadConfig(dir), &fakeFetcher{})

	outcome := m.Execute(context.Background(), model.Job{
		Name: "missing.iso",
		URL:  server.URL + "/missing.iso",
		Type: model.TransportHTTP,
	})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "404")
	assert.NoFileExists(t, filepath.Join(dir, "missing.iso"))
}

func TestExecuteRsyncSuccess(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{content: []byte("rsync payload")}
	m := NewManagerWithFetcher(testDownloadConfig(dir), fetcher)

	job := model.Job{Name: "debian.iso", URL: "rsync://mirror.example.com/debian.iso", Type: model.TransportRsync}
	outcome := m.Execute(context.Background(), job)

	require.True(t, outcome.Success, "unexpected failure: %s", outcome.Error)
	assert.Equal(t, int64(len("rsync payload")), outcome.SizeBytes)
	assert.FileExists(t, filepath.Join(dir, "debian.iso"))
	assert.Equal(t, 1, fetcher.calls)
}

func TestExecuteRsyncFailureRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{err: errors.New("rsync: connection reset"), partial: []byte("partial")}
	m := NewManagerWithFetcher(testDownloadConfig(dir), fetcher)

	job := model.Job{Name: "debian.iso", URL: "rsync://mirror.example.com/debian.iso", Type: model.TransportRsync}
	outcome := m.Execute(context.Background(), job)

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "connection reset")
	assert.NoFileExists(t, filepath.Join(dir, "debian.iso"))
}

func TestExecuteUnsupportedTransport(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerWithFetcher(testDownloadConfig(dir), &fakeFetcher{})

	job := model.Job{Name: "weird", URL: "ftp://example.com/a.iso", Type: model.Transport("ftp")}
	outcome := m.Execute(context.Background(), job)

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "unsupported transport")

	// Zero filesystem side effects.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecuteAdmissionGate(t *testing.T) {
	const (
		maxParallel = 2
		totalJobs   = 6
	)

	var mu sync.Mutex
	var current, highWater int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		current++
		if current > highWater {
			highWater = current
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()

		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	cfg := testDownloadConfig(t.TempDir())
	cfg.MaxParallel = maxParallel
	m := NewManagerWithFetcher(cfg, &fakeFetcher{})

	var wg sync.WaitGroup
	for i := 0; i < totalJobs; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			job := model.Job{
				Name: "gate-" + string(rune('a'+n)) + ".iso",
				URL:  server.URL,
				Type: model.TransportHTTP,
			}
			outcome := m.Execute(context.Background(), job)
			assert.True(t, outcome.Success)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, highWater, maxParallel,
		"no more than maxParallel transfers may be in flight at once")
	assert.Zero(t, m.Active())
}

func TestExecuteCancelledWhileGated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testDownloadConfig(t.TempDir())
	cfg.MaxParallel = 1
	m := NewManagerWithFetcher(cfg, &fakeFetcher{})

	// Occupy the only slot.
	m.gate <- struct{}{}
	defer func() { <-m.gate }()

	outcome := m.Execute(ctx, model.Job{Name: "a.iso", URL: "https://example.com/a.iso", Type: model.TransportHTTP})
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "context canceled")
}
