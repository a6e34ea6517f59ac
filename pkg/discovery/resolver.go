package discovery

import (
	"context"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/config"
	"github.com/nickmerrett/iso-downloader/pkg/model"
)

// Resolver turns the configured sources and discovery patterns into a flat,
// deduplicated job list.
type Resolver struct {
	disc Discoverer
}

// NewResolver creates a resolver on top of a discoverer.
func NewResolver(d Discoverer) *Resolver {
	return &Resolver{disc: d}
}

// ResolveAll collects all enabled explicit sources, discovers artifacts for
// every enabled pattern, and returns the combined list deduplicated by URL
// (first occurrence wins; explicit sources are resolved first and therefore
// take priority over a discovered duplicate).
//
// A failure while resolving one pattern is logged and never aborts the
// others: partial results are preferred to total failure.
func (r *Resolver) ResolveAll(ctx context.Context, cfg *config.Config) []model.Job {
	var jobs []model.Job

	for _, src := range cfg.EnabledSources() {
		jobs = append(jobs, model.JobFromSource(*src))
	}

	for _, pat := range cfg.EnabledPatterns() {
		artifacts, err := r.discoverPattern(ctx, pat)
		if err != nil {
			logger.Error("Error resolving pattern", logger.Fields{
				"pattern": pat.Name,
				"error":   err.Error(),
			})
			continue
		}

		artifacts = ApplyExcludes(artifacts, pat.ExcludePatterns)
		for _, art := range artifacts {
			jobs = append(jobs, model.JobFromArtifact(*pat, art))
		}

		logger.Info("Resolved pattern", logger.Fields{
			"pattern":   pat.Name,
			"artifacts": len(artifacts),
		})
	}

	return dedupeJobs(jobs)
}

// ResolveAndPublish resolves the full job list and publishes every job. This
// is the unit of work the scheduler invokes on its cadence. It returns the
// number of jobs published.
func (r *Resolver) ResolveAndPublish(ctx context.Context, cfg *config.Config, pub Publisher) (int, error) {
	jobs := r.ResolveAll(ctx, cfg)
	for _, job := range jobs {
		if err := pub.Publish(ctx, job); err != nil {
			return 0, err
		}
		logger.Debug("Published download job", logger.Fields{"job": job.Name})
	}
	logger.Info("Published download jobs", logger.Fields{"count": len(jobs)})
	return len(jobs), nil
}

func (r *Resolver) discoverPattern(ctx context.Context, pat *model.Pattern) ([]model.Artifact, error) {
	if pat.Recursive {
		return r.disc.DiscoverRecursive(ctx, pat.BaseURL, pat.Type, pat.MaxDepth, pat.IncludePatterns)
	}
	return r.disc.Discover(ctx, pat.BaseURL, pat.Type, pat.IncludePatterns)
}

// ApplyExcludes drops artifacts whose name matches any exclude glob,
// case-insensitively.
func ApplyExcludes(artifacts []model.Artifact, excludes []string) []model.Artifact {
	if len(excludes) == 0 {
		return artifacts
	}
	out := make([]model.Artifact, 0, len(artifacts))
	for _, art := range artifacts {
		if matchesAny(art.Name, excludes) {
			continue
		}
		out = append(out, art)
	}
	return out
}

func dedupeJobs(jobs []model.Job) []model.Job {
	seen := make(map[string]bool, len(jobs))
	out := make([]model.Job, 0, len(jobs))
	for _, job := range jobs {
		if seen[job.URL] {
			continue
		}
		seen[job.URL] = true
		out = append(out, job)
	}
	return out
}
