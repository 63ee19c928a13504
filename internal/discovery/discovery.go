package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/docdex/docdex/internal/model"
)

// ErrNoSource is returned when every strategy in the chain came up
// empty. Callers treat it as fatal: there is nothing to crawl.
var ErrNoSource = errors.New("discovery: no page source found")

// maxFetchBody bounds how much of any discovery response is read.
const maxFetchBody = 50 * 1024 * 1024 // 50MB, sized for llms-full.txt files

// Target identifies the site a discovery run works on.
type Target struct {
	// BaseURL is the documentation root, already normalized.
	BaseURL string

	// Name and Version label the cache entry. Strategies only use
	// them for logging.
	Name    string
	Version string

	// RepoURL is an optional source repository URL used by the
	// README fallback strategy.
	RepoURL string
}

// Strategy is one way of producing the page list for a target.
// Implementations return an empty slice (not an error) when the
// source simply is not present on the site.
type Strategy interface {
	// Name identifies the strategy in logs and in the cache index
	// sourceType field.
	Name() string

	// Discover returns the page descriptors this source yields.
	Discover(ctx context.Context, target Target) ([]model.PageDescriptor, error)
}

// Result is the outcome of a chain run.
type Result struct {
	// Source is the name of the strategy that produced the pages.
	Source string

	// Descriptors is the deduplicated page list, in source order.
	Descriptors []model.PageDescriptor
}

// Chain runs strategies in order until one yields pages.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain builds a chain over the given strategies. A nil logger
// discards log output.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{strategies: strategies, logger: logger}
}

// Discover runs the chain for a target.
//
// Design decision: a strategy error does not abort the chain because
// each strategy probes an independent source. A malformed sitemap
// says nothing about whether the navigation crawl will work, so the
// error is logged and the chain moves on. Context cancellation is the
// one exception; it aborts everything.
func (c *Chain) Discover(ctx context.Context, target Target) (*Result, error) {
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		descriptors, err := s.Discover(ctx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.logger.Warn("discovery strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("target", target.BaseURL),
				slog.String("error", err.Error()))
			continue
		}

		descriptors = dedupeDescriptors(descriptors)
		if len(descriptors) == 0 {
			c.logger.Debug("discovery strategy found nothing",
				slog.String("strategy", s.Name()),
				slog.String("target", target.BaseURL))
			continue
		}

		c.logger.Info("discovery succeeded",
			slog.String("strategy", s.Name()),
			slog.Int("pages", len(descriptors)))
		return &Result{Source: s.Name(), Descriptors: descriptors}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSource, target.BaseURL)
}

// dedupeDescriptors removes duplicates by normalized URL, keeping the
// first occurrence so source ordering survives.
func dedupeDescriptors(in []model.PageDescriptor) []model.PageDescriptor {
	seen := make(map[string]bool, len(in))
	out := make([]model.PageDescriptor, 0, len(in))
	for _, d := range in {
		key := model.NormalizeURL(d.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// fetch retrieves one URL with the discovery defaults. The body is
// size-limited; non-2xx responses are returned with a nil error so
// strategies can react to specific status codes.
func fetch(ctx context.Context, client *http.Client, rawURL, userAgent string) (body []byte, status int, header http.Header, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("discovery: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("discovery: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return nil, resp.StatusCode, resp.Header, fmt.Errorf("discovery: read %s: %w", rawURL, err)
	}
	return body, resp.StatusCode, resp.Header, nil
}

// sameOrigin reports whether candidate shares scheme and host with
// the base URL.
func sameOrigin(base *url.URL, candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// skippedExtensions are asset types that never hold documentation
// prose. They are filtered out of every strategy's output.
var skippedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".ico": true, ".css": true, ".js": true, ".woff": true, ".woff2": true,
	".zip": true, ".tar": true, ".gz": true, ".mp4": true, ".webm": true,
	".pdf": true,
}

// docsPage reports whether a same-origin URL looks like a
// documentation page for the base. When the base URL carries a path
// prefix (such as /docs) only URLs under that prefix qualify; a root
// base accepts any non-asset path.
func docsPage(base *url.URL, candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if skippedExtensions[strings.ToLower(path.Ext(u.Path))] {
		return false
	}

	prefix := strings.TrimSuffix(base.Path, "/")
	if prefix == "" {
		return true
	}
	p := u.Path
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
