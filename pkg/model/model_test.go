package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransport(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Transport
		expectError bool
	}{
		{name: "http", input: "http", expected: TransportHTTP},
		{name: "rsync", input: "rsync", expected: TransportRsync},
		{name: "ftp is unsupported", input: "ftp", expectError: true},
		{name: "empty is unsupported", input: "", expectError: true},
		{name: "case sensitive", input: "HTTP", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTransport(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestJobWireSchema(t *testing.T) {
	job := Job{
		Name: "ubuntu-22.04",
		URL:  "https://releases.ubuntu.com/22.04/ubuntu-22.04.3-desktop-amd64.iso",
		Type: TransportHTTP,
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	// Field names are the cross-process wire contract.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"name", "url", "type", "destination_dir", "timestamp"} {
		assert.Contains(t, raw, key)
	}

	var back Job
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, job, back)
}

func TestJobFromArtifact(t *testing.T) {
	pat := Pattern{
		Name:           "fedora-mirror",
		BaseURL:        "https://mirror.example.com/fedora/",
		Type:           TransportHTTP,
		DestinationDir: "/data/fedora",
	}
	art := Artifact{
		Name: "Fedora-Workstation-40.iso",
		URL:  "https://mirror.example.com/fedora/Fedora-Workstation-40.iso",
		Type: TransportHTTP,
	}

	job := JobFromArtifact(pat, art)
	assert.Equal(t, "fedora-mirror - Fedora-Workstation-40.iso", job.Name)
	assert.Equal(t, art.URL, job.URL)
	assert.Equal(t, TransportHTTP, job.Type)
	assert.Equal(t, "/data/fedora", job.DestinationDir)
}

func TestSpeedMBps(t *testing.T) {
	assert.InDelta(t, 1.0, SpeedMBps(1024*1024, time.Second), 0.001)
	assert.InDelta(t, 2.0, SpeedMBps(4*1024*1024, 2*time.Second), 0.001)
	assert.Zero(t, SpeedMBps(1024, 0))
}
