// Package rsync wraps the rsync command line tool for remote listing and
// archive transfers. All invocations go through a Runner so tests can
// substitute a fake process.
package rsync

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
)

// MinVersion is the oldest rsync release this tool is known to work with.
// Older releases lack the --list-only spelling used for discovery.
const MinVersion = "3.0.0"

var versionRe = regexp.MustCompile(`rsync\s+version\s+v?(\d+\.\d+(?:\.\d+)?)`)

// Runner executes the rsync binary and returns its captured output.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout string, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "rsync", args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// Client invokes rsync for listings and transfers.
type Client struct {
	runner Runner
}

// New creates a client backed by the system rsync binary.
func New() *Client {
	return &Client{runner: execRunner{}}
}

// NewWithRunner creates a client with a custom runner, used by tests.
func NewWithRunner(r Runner) *Client {
	return &Client{runner: r}
}

// List runs rsync in listing mode against baseURL and returns the raw
// newline-delimited output.
func (c *Client) List(ctx context.Context, baseURL string) (string, error) {
	stdout, stderr, err := c.runner.Run(ctx, "--list-only", baseURL)
	if err != nil {
		return "", errors.Wrapf(err, "rsync listing failed for %s: %s", baseURL, strings.TrimSpace(stderr))
	}
	return stdout, nil
}

// Fetch transfers url to destPath in archive mode with progress output.
func (c *Client) Fetch(ctx context.Context, url, destPath string) error {
	_, stderr, err := c.runner.Run(ctx, "-avP", url, destPath)
	if err != nil {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = err.Error()
		}
		return errors.Wrapf(errors.ErrDownloadFailed, "rsync: %s", msg)
	}
	return nil
}

// Version probes the installed rsync release.
func (c *Client) Version(ctx context.Context) (*goversion.Version, error) {
	stdout, stderr, err := c.runner.Run(ctx, "--version")
	if err != nil {
		return nil, errors.Wrapf(err, "rsync not available: %s", strings.TrimSpace(stderr))
	}
	m := versionRe.FindStringSubmatch(stdout)
	if m == nil {
		return nil, errors.Wrapf(errors.ErrDownloadFailed, "cannot parse rsync version from %q", firstLine(stdout))
	}
	return goversion.NewVersion(m[1])
}

// CheckVersion verifies the installed rsync meets MinVersion.
func (c *Client) CheckVersion(ctx context.Context) error {
	installed, err := c.Version(ctx)
	if err != nil {
		return err
	}
	minimum := goversion.Must(goversion.NewVersion(MinVersion))
	if installed.LessThan(minimum) {
		return errors.Wrapf(errors.ErrConfigValidation, "rsync %s is older than required %s", installed, minimum)
	}
	return nil
}

// Entry is one line of rsync listing output.
type Entry struct {
	Perms string
	Name  string
}

// IsDir reports whether the entry describes a directory.
func (e Entry) IsDir() bool {
	return strings.HasPrefix(e.Perms, "d")
}

// ParseListing parses rsync listing output of the form
// "<permissions> <size> <date> <time> <filename>". Malformed lines are
// skipped.
func ParseListing(output string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 5 {
			continue
		}
		entries = append(entries, Entry{
			Perms: parts[0],
			Name:  parts[len(parts)-1],
		})
	}
	return entries
}

// JoinURL joins an rsync base URL and a filename with exactly one separator.
func JoinURL(baseURL, name string) string {
	if strings.HasSuffix(baseURL, "/") {
		return baseURL + name
	}
	return baseURL + "/" + name
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
