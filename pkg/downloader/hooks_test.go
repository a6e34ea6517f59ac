package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickmerrett/iso-downloader/pkg/errors"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.tengo")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestExecuteHookBindsVariables(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "hook-ran.txt")
	script := `
os := import("os")
text := import("text")
line := text.join([job_name, url, filepath, string(size_bytes)], "|")
f := os.create("` + marker + `")
f.write(bytes(line))
f.close()
`
	he := NewHookExecutor()
	err := he.ExecuteHook(writeScript(t, script), &HookContext{
		JobName:   "fedora.iso",
		URL:       "https://example.com/fedora.iso",
		Filepath:  "/downloads/fedora.iso",
		SizeBytes: 1234,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "fedora.iso|https://example.com/fedora.iso|/downloads/fedora.iso|1234", string(got))
}

func TestExecuteHookScriptError(t *testing.T) {
	he := NewHookExecutor()
	err := he.ExecuteHook(writeScript(t, `no_such_fn()`), &HookContext{JobName: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHookScript)
}

func TestExecuteHookMissingScript(t *testing.T) {
	he := NewHookExecutor()
	err := he.ExecuteHook(filepath.Join(t.TempDir(), "absent.tengo"), &HookContext{JobName: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read hook script")
}
