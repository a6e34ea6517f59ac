// Package model defines the value objects that flow through the download
// pipeline: configured sources and discovery patterns, artifacts found during
// discovery, queued download jobs and their outcomes.
package model

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport identifies the protocol used to list and fetch remote artifacts.
type Transport string

const (
	// TransportHTTP fetches artifacts with plain HTTP(S) GET requests.
	TransportHTTP Transport = "http"
	// TransportRsync fetches artifacts through the rsync command.
	TransportRsync Transport = "rsync"
)

// ParseTransport converts a wire/config string into a Transport.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportHTTP:
		return TransportHTTP, nil
	case TransportRsync:
		return TransportRsync, nil
	default:
		return "", fmt.Errorf("unsupported transport %q", s)
	}
}

// Valid reports whether t is one of the supported transports.
func (t Transport) Valid() bool {
	return t == TransportHTTP || t == TransportRsync
}

func (t Transport) String() string { return string(t) }

// Source is one explicitly configured download.
type Source struct {
	Name           string    `yaml:"name"`
	URL            string    `yaml:"url"`
	Type           Transport `yaml:"type"`
	Enabled        bool      `yaml:"enabled"`
	Discovered     bool      `yaml:"discovered,omitempty"`
	DestinationDir string    `yaml:"destination_dir,omitempty"`
}

// UnmarshalYAML decodes a source, defaulting enabled to true when omitted.
func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	type rawSource Source
	raw := rawSource{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*s = Source(raw)
	return nil
}

// Pattern is one configured discovery rule. Include patterns are applied
// during discovery, exclude patterns afterwards by the resolver.
type Pattern struct {
	Name            string    `yaml:"name"`
	BaseURL         string    `yaml:"base_url"`
	Type            Transport `yaml:"type"`
	Enabled         bool      `yaml:"enabled"`
	IncludePatterns []string  `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string  `yaml:"exclude_patterns,omitempty"`
	Recursive       bool      `yaml:"recursive,omitempty"`
	MaxDepth        int       `yaml:"max_depth,omitempty"`
	DestinationDir  string    `yaml:"destination_dir,omitempty"`
}

// UnmarshalYAML decodes a pattern, defaulting enabled to true and max_depth
// to 2 when omitted.
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	type rawPattern Pattern
	raw := rawPattern{Enabled: true, MaxDepth: 2}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Pattern(raw)
	return nil
}

// Artifact is one remote file found during a discovery pass. It exists only
// within a single resolution cycle and is never persisted.
type Artifact struct {
	Name string
	URL  string
	Type Transport
}

// Job is the unit of work flowing through the queue. The JSON field names are
// the wire schema shared by every producer and consumer process and must not
// change.
type Job struct {
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Type           Transport `json:"type"`
	DestinationDir string    `json:"destination_dir"`
	Timestamp      string    `json:"timestamp"`

	// Discovered marks jobs produced by pattern discovery rather than an
	// explicit source. Process-local, never sent on the wire.
	Discovered bool `json:"-"`
}

// JobFromSource builds a Job from an explicitly configured source.
func JobFromSource(src Source) Job {
	return Job{
		Name:           src.Name,
		URL:            src.URL,
		Type:           src.Type,
		DestinationDir: src.DestinationDir,
		Discovered:     src.Discovered,
	}
}

// JobFromArtifact builds a Job from an artifact discovered by a pattern. The
// job name combines the pattern name and the artifact basename so operators
// can tell which rule produced it.
func JobFromArtifact(pat Pattern, art Artifact) Job {
	return Job{
		Name:           fmt.Sprintf("%s - %s", pat.Name, art.Name),
		URL:            art.URL,
		Type:           art.Type,
		DestinationDir: pat.DestinationDir,
		Discovered:     true,
	}
}

// Outcome is the structured result of executing one download job. It is
// produced exactly once per execution attempt and only ever logged or
// returned, never persisted.
type Outcome struct {
	Success        bool
	JobName        string
	Type           Transport
	Filepath       string
	SizeBytes      int64
	SpeedMBps      float64
	Duration       time.Duration
	DestinationDir string
	Error          string
}

// Failure builds a failed outcome for the given job carrying the error text.
func Failure(job Job, filepath string, err error) Outcome {
	out := Outcome{
		JobName:  job.Name,
		Type:     job.Type,
		Filepath: filepath,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// SpeedMBps computes megabytes per second for a transfer of size bytes over
// elapsed wall-clock time. Returns 0 when elapsed is 0.
func SpeedMBps(sizeBytes int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(sizeBytes) / (1024 * 1024) / secs
}
