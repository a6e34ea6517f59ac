// Package discovery enumerates remote ISO images from HTTP directory
// listings and rsync modules and resolves the configured sources and
// patterns into a deduplicated download job list.
package discovery

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/model"
	"github.com/nickmerrett/iso-downloader/pkg/rsync"
)

// DefaultPatterns cover generic and role-suffixed disk image names. Matching
// is case-insensitive.
var DefaultPatterns = []string{
	"*.iso",
	"*-dvd*.iso",
	"*-cd*.iso",
	"*-live*.iso",
	"*-install*.iso",
	"*-boot*.iso",
}

// Directory listings are generated by many different servers, so candidate
// links are extracted with three independent rules: quoted hrefs ending in
// .iso, bare quoted hrefs, and text content ending in .iso.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<a\s+[^>]*href=["']([^"']*\.iso)["'][^>]*>`),
	regexp.MustCompile(`(?i)href=["']([^"']*\.iso)["']`),
	regexp.MustCompile(`(?i)>([^<]*\.iso)<`),
}

// subdirPattern extracts directory links (trailing slash) for recursive
// traversal of HTTP listings.
var subdirPattern = regexp.MustCompile(`(?i)href=["']([^"'?#]+/)["']`)

// Engine discovers artifacts over HTTP and rsync.
type Engine struct {
	client *http.Client
	lister Lister
}

// NewEngine creates a discovery engine with the given total listing timeout.
func NewEngine(timeout time.Duration) *Engine {
	return &Engine{
		client: &http.Client{Timeout: timeout},
		lister: rsync.New(),
	}
}

// NewEngineWithLister creates an engine with a custom rsync lister, used by
// tests.
func NewEngineWithLister(timeout time.Duration, lister Lister) *Engine {
	return &Engine{
		client: &http.Client{Timeout: timeout},
		lister: lister,
	}
}

// Discover implements Discoverer.
func (e *Engine) Discover(ctx context.Context, baseURL string, transport model.Transport, patterns []string) ([]model.Artifact, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	switch transport {
	case model.TransportHTTP:
		artifacts, _, err := e.listHTTP(ctx, baseURL, patterns)
		return artifacts, err
	case model.TransportRsync:
		return e.listRsync(ctx, baseURL, patterns)
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedTransport, "%s", transport)
	}
}

// DiscoverRecursive implements Discoverer. For HTTP, subdirectory links in
// each listing are followed down to maxDepth. rsync modules are listed flat:
// descending into an rsync module would need per-directory listing commands
// and the base listing already covers the common mirror layout.
func (e *Engine) DiscoverRecursive(ctx context.Context, baseURL string, transport model.Transport, maxDepth int, patterns []string) ([]model.Artifact, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if transport != model.TransportHTTP {
		return e.Discover(ctx, baseURL, transport, patterns)
	}

	var all []model.Artifact
	visited := make(map[string]bool)

	var walk func(pageURL string, depth int)
	walk = func(pageURL string, depth int) {
		if depth > maxDepth || visited[pageURL] {
			return
		}
		visited[pageURL] = true

		artifacts, subdirs, err := e.listHTTP(ctx, pageURL, patterns)
		if err != nil {
			logger.Error("Discovery of subdirectory failed", logger.Fields{
				"url":   pageURL,
				"error": err.Error(),
			})
			return
		}
		all = append(all, artifacts...)

		for _, dir := range subdirs {
			// Stay below the starting location.
			if strings.HasPrefix(dir, baseURL) {
				walk(dir, depth+1)
			}
		}
	}

	walk(baseURL, 0)
	return dedupeArtifacts(all), nil
}

// listHTTP fetches one directory listing and returns the matching artifacts
// plus the subdirectory URLs found on the page.
func (e *Engine) listHTTP(ctx context.Context, baseURL string, patterns []string) ([]model.Artifact, []string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid listing url %s", baseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, http.NoBody)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create request")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listing %s failed", baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, errors.Wrapf(errors.ErrUnexpectedStatus, "GET %s returned %d", baseURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading listing %s", baseURL)
	}
	html := string(body)

	var artifacts []model.Artifact
	seen := make(map[string]bool)
	for _, re := range linkPatterns {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			link := strings.TrimSpace(m[1])
			full := resolveLink(base, link)
			if full == "" || seen[full] {
				continue
			}
			name := path.Base(full)
			if !matchesAny(name, patterns) {
				continue
			}
			seen[full] = true
			artifacts = append(artifacts, model.Artifact{
				Name: name,
				URL:  full,
				Type: model.TransportHTTP,
			})
		}
	}

	return artifacts, extractSubdirs(base, html), nil
}

// listRsync lists an rsync location and keeps non-directory entries whose
// names match the patterns.
func (e *Engine) listRsync(ctx context.Context, baseURL string, patterns []string) ([]model.Artifact, error) {
	output, err := e.lister.List(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	var artifacts []model.Artifact
	for _, entry := range rsync.ParseListing(output) {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name), ".iso") {
			continue
		}
		if !matchesAny(entry.Name, patterns) {
			continue
		}
		artifacts = append(artifacts, model.Artifact{
			Name: entry.Name,
			URL:  rsync.JoinURL(baseURL, entry.Name),
			Type: model.TransportRsync,
		})
	}
	return artifacts, nil
}

// resolveLink turns a candidate href into an absolute URL, or "" when it
// cannot be resolved.
func resolveLink(base *url.URL, link string) string {
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// extractSubdirs returns the absolute URLs of subdirectory links on a
// listing page, skipping navigation links (parent, absolute paths, other
// hosts).
func extractSubdirs(base *url.URL, html string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, m := range subdirPattern.FindAllStringSubmatch(html, -1) {
		link := m[1]
		if strings.HasPrefix(link, "/") || strings.Contains(link, "://") || strings.Contains(link, "..") {
			continue
		}
		full := resolveLink(base, link)
		if full == "" || seen[full] {
			continue
		}
		seen[full] = true
		dirs = append(dirs, full)
	}
	return dirs
}

// matchesAny reports whether name matches at least one shell glob pattern,
// case-insensitively.
func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range patterns {
		if ok, err := path.Match(strings.ToLower(pattern), lower); err == nil && ok {
			return true
		}
	}
	return false
}

func dedupeArtifacts(artifacts []model.Artifact) []model.Artifact {
	seen := make(map[string]bool, len(artifacts))
	out := make([]model.Artifact, 0, len(artifacts))
	for _, art := range artifacts {
		if seen[art.URL] {
			continue
		}
		seen[art.URL] = true
		out = append(out, art)
	}
	return out
}

var _ Discoverer = (*Engine)(nil)
