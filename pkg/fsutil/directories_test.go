package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T) string
		checkPerms bool
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "downloads")
			},
			checkPerms: true,
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "downloads", "fedora", "40")
			},
			checkPerms: true,
		},
		{
			name: "succeeds when directory already exists",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			path := testCase.setup(t)

			err := EnsureDir(path)

			assert.NoError(t, err)
			assert.DirExists(t, path)

			// Verify permissions (only check on Unix-like systems)
			if testCase.checkPerms && runtime.GOOS != "windows" {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(DirModeDefault), info.Mode().Perm())
			}
		})
	}
}

func TestEnsureFileDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "isos", "ubuntu.iso")

	require.NoError(t, EnsureFileDir(target))

	assert.DirExists(t, filepath.Dir(target))
	assert.NoFileExists(t, target)
}
