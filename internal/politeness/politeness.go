package politeness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Mode selects how robots.txt verdicts are enforced.
type Mode string

// Enforcement modes.
const (
	// ModeOff disables robots handling: every URL is allowed and no
	// robots.txt is fetched.
	ModeOff Mode = "off"

	// ModeWarn fetches and evaluates robots.txt but only logs
	// disallowed URLs; they are still crawled.
	ModeWarn Mode = "warn"

	// ModeEnforce skips disallowed URLs. The default.
	ModeEnforce Mode = "enforce"

	// ModeStrict aborts the crawl when a URL is disallowed or the
	// robots policy cannot be determined.
	ModeStrict Mode = "strict"
)

// ParseMode converts a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeOff, ModeWarn, ModeEnforce, ModeStrict:
		return Mode(strings.ToLower(s)), nil
	}
	return "", fmt.Errorf("unknown robots mode %q", s)
}

// Package errors.
var (
	// ErrDisallowed is returned in strict mode when robots.txt
	// disallows a URL.
	ErrDisallowed = errors.New("politeness: URL disallowed by robots.txt")

	// ErrRobotsUnavailable is returned in strict mode when the robots
	// policy cannot be fetched or parsed.
	ErrRobotsUnavailable = errors.New("politeness: robots policy unavailable")
)

// maxRobotsBody bounds the robots.txt read. Real files are a few KB;
// anything bigger is hostile or broken.
const maxRobotsBody = 512 * 1024

// Store persists robots policies across runs. Implemented by the
// database package; nil disables disk caching.
type Store interface {
	// SaveRobotsPolicy stores a serialized policy for a domain.
	SaveRobotsPolicy(ctx context.Context, domain string, policyJSON []byte) error

	// LoadRobotsPolicy retrieves the serialized policy and its fetch
	// time, or an error when no entry exists.
	LoadRobotsPolicy(ctx context.Context, domain string) ([]byte, time.Time, error)
}

// Checker answers allow/deny and crawl-delay queries against cached
// per-domain robots policies.
type Checker struct {
	client    *http.Client
	userAgent string
	mode      Mode
	ttl       time.Duration
	store     Store
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	domains map[string]*domainEntry
}

// domainEntry is the in-memory cache slot for one domain.
type domainEntry struct {
	policy *Policy
	group  *robotstxt.Group
}

// Option configures a Checker.
type Option func(*Checker)

// WithMode sets the enforcement mode. Default is ModeEnforce.
func WithMode(mode Mode) Option {
	return func(c *Checker) { c.mode = mode }
}

// WithUserAgent sets the user agent used for rule-group selection and
// the robots.txt request itself.
func WithUserAgent(ua string) Option {
	return func(c *Checker) { c.userAgent = ua }
}

// WithStore attaches a disk cache for policies.
func WithStore(store Store) Option {
	return func(c *Checker) { c.store = store }
}

// WithTTL overrides the policy freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Checker) { c.ttl = ttl }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// WithNow injects the clock, for TTL tests.
func WithNow(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// New creates a Checker using the given HTTP client.
// The client is provided by the caller so the crawler's timeout and
// transport settings apply to robots fetches too.
func New(client *http.Client, opts ...Option) *Checker {
	c := &Checker{
		client:    client,
		userAgent: "docdex",
		mode:      ModeEnforce,
		ttl:       DefaultPolicyTTL,
		now:       time.Now,
		domains:   make(map[string]*domainEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Init resolves the robots policy for the base URL's domain up front,
// so discovery can ask for sitemap locations before any page fetch.
// Outside strict mode, failures degrade to allow-all and Init returns
// nil.
func (c *Checker) Init(ctx context.Context, baseURL string) error {
	if c.mode == ModeOff {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("politeness: invalid base URL: %w", err)
	}
	_, err = c.policyFor(ctx, u)
	if c.mode == ModeStrict && err != nil {
		return err
	}
	return nil
}

// Allowed reports whether the URL may be fetched under the current
// mode. In strict mode a disallowed URL also returns ErrDisallowed.
func (c *Checker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	if c.mode == ModeOff {
		return true, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("politeness: invalid URL: %w", err)
	}

	entry, err := c.policyFor(ctx, u)
	if err != nil {
		if c.mode == ModeStrict {
			return false, err
		}
		// Fail open: an unknown policy must not stall a crawl.
		return true, nil
	}

	if entry.group == nil || entry.group.Test(u.RequestURI()) {
		return true, nil
	}

	switch c.mode {
	case ModeWarn:
		c.logger.Warn("robots.txt disallows URL, fetching anyway",
			"url", rawURL, "mode", string(c.mode))
		return true, nil
	case ModeStrict:
		return false, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	default:
		c.logger.Info("skipping URL disallowed by robots.txt", "url", rawURL)
		return false, nil
	}
}

// CrawlDelay returns the crawl-delay declared for the URL's domain,
// or zero when none is known. Reads only the in-memory cache; call
// Init or Allowed first to populate it.
func (c *Checker) CrawlDelay(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.domains[u.Hostname()]; ok && entry.policy != nil {
		return entry.policy.CrawlDelay
	}
	return 0
}

// SitemapURLs returns the sitemap locations declared in the robots
// policy for the URL's domain. Empty when unknown.
func (c *Checker) SitemapURLs(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.domains[u.Hostname()]; ok && entry.policy != nil {
		return entry.policy.SitemapURLs
	}
	return nil
}

// policyFor returns the cached policy for a URL's domain, consulting
// memory, then the disk store, then the network.
func (c *Checker) policyFor(ctx context.Context, u *url.URL) (*domainEntry, error) {
	domain := u.Hostname()

	c.mu.Lock()
	if entry, ok := c.domains[domain]; ok {
		c.mu.Unlock()
		return entry, nil
	}
	c.mu.Unlock()

	// Disk cache next. A decode failure just falls through to refetch.
	if c.store != nil {
		if data, _, err := c.store.LoadRobotsPolicy(ctx, domain); err == nil {
			if policy, err := UnmarshalPolicy(data); err == nil && !policy.IsStale(c.now(), c.ttl) {
				group, gerr := policy.group(c.userAgent)
				if gerr == nil {
					return c.remember(domain, policy, group), nil
				}
			}
		}
	}

	policy, group, err := c.fetchPolicy(ctx, u)
	if err != nil {
		// Fail open in memory so one bad domain is asked only once
		// per run, but do not poison the disk cache.
		c.remember(domain, &Policy{Domain: domain, AllowAll: true, FetchedAt: c.now()}, nil)
		return nil, fmt.Errorf("%w: %v", ErrRobotsUnavailable, err)
	}

	if c.store != nil {
		if data, merr := policy.Marshal(); merr == nil {
			if serr := c.store.SaveRobotsPolicy(ctx, domain, data); serr != nil {
				c.logger.Debug("failed to persist robots policy", "domain", domain, "error", serr)
			}
		}
	}

	return c.remember(domain, policy, group), nil
}

func (c *Checker) remember(domain string, policy *Policy, group *robotstxt.Group) *domainEntry {
	entry := &domainEntry{policy: policy, group: group}
	c.mu.Lock()
	c.domains[domain] = entry
	c.mu.Unlock()
	return entry
}

// fetchPolicy retrieves and parses robots.txt for the URL's origin.
func (c *Checker) fetchPolicy(ctx context.Context, u *url.URL) (*Policy, *robotstxt.Group, error) {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return nil, nil, err
	}

	policy, group, err := parsePolicy(u.Hostname(), c.userAgent, resp.StatusCode, body, c.now())
	if err != nil {
		return nil, nil, err
	}

	c.logger.Debug("robots policy loaded",
		"domain", u.Hostname(),
		"allow_all", policy.AllowAll,
		"crawl_delay", policy.CrawlDelay,
		"sitemaps", len(policy.SitemapURLs),
	)
	return policy, group, nil
}
