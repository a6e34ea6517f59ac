// Package testutil provides helpers for tests that need a fake ISO mirror.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// MirrorServer serves a directory tree over HTTP the way a distribution
// mirror does, with browsable index pages that discovery can crawl.
type MirrorServer struct {
	Server *httptest.Server
	Dir    string
}

// NewMirrorServer creates a mirror rooted at a fresh temp directory. The
// server is shut down when the test finishes.
func NewMirrorServer(t *testing.T) *MirrorServer {
	t.Helper()

	dir := t.TempDir()
	server := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(server.Close)

	return &MirrorServer{Server: server, Dir: dir}
}

// URL returns the mirror URL for the given path relative to the root.
func (m *MirrorServer) URL(relPath string) string {
	if relPath == "" {
		return m.Server.URL + "/"
	}
	return m.Server.URL + "/" + relPath
}

// WriteImage places a fake image file on the mirror.
func (m *MirrorServer) WriteImage(t *testing.T, relPath string, content []byte) {
	t.Helper()

	path := filepath.Join(m.Dir, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}
