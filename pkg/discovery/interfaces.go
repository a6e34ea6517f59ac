//go:generate mockgen -package mocks -destination=./mocks/discovery.go . Discoverer,Publisher
package discovery

import (
	"context"

	"github.com/nickmerrett/iso-downloader/pkg/model"
)

// Discoverer enumerates remote ISO artifacts below a listing location.
type Discoverer interface {
	// Discover lists artifacts directly below baseURL whose basenames match
	// at least one of the glob patterns (the default set when patterns is
	// empty).
	Discover(ctx context.Context, baseURL string, transport model.Transport, patterns []string) ([]model.Artifact, error)

	// DiscoverRecursive walks subdirectories below baseURL down to maxDepth
	// (depth 0 is baseURL itself), never visiting a location twice.
	DiscoverRecursive(ctx context.Context, baseURL string, transport model.Transport, maxDepth int, patterns []string) ([]model.Artifact, error)
}

// Publisher accepts resolved jobs for delivery. Satisfied by the queue
// implementations.
type Publisher interface {
	Publish(ctx context.Context, job model.Job) error
}

// Lister abstracts the rsync listing command so discovery tests can run
// without the binary.
type Lister interface {
	List(ctx context.Context, baseURL string) (string, error)
}
