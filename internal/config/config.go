package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These are chosen for documentation
// hosts, which are usually CDN-fronted and tolerate moderate
// concurrency but rate-limit bursts aggressively.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "docdex"

	// DefaultTimeout is the per-request timeout. Documentation pages
	// are small; anything slower than this is worth retrying.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the politeness delay between requests from
	// one worker. A robots.txt crawl-delay overrides it when larger.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultMaxPages bounds one fetch operation. Docs sites with auto
	// generated API references can run to tens of thousands of pages;
	// the cache is meant to hold the useful core, not every permalink.
	DefaultMaxPages = 500

	// DefaultConcurrency is the crawl worker pool size.
	DefaultConcurrency = 5

	// DefaultMaxRetries is the per-page fetch attempt budget.
	DefaultMaxRetries = 3

	// DefaultCheckpointInterval is how many successful pages pass
	// between checkpoint saves.
	DefaultCheckpointInterval = 10

	// DefaultCheckpointMaxAge is how long an interrupted run stays
	// resumable.
	DefaultCheckpointMaxAge = 7 * 24 * time.Hour

	// DefaultUserAgent identifies docdex in HTTP requests. A
	// descriptive User-Agent lets site operators identify crawler
	// traffic and contact us instead of blocking blindly.
	DefaultUserAgent = "docdex/1.0 (+https://github.com/docdex/docdex)"

	// DefaultMaxBodySize limits response bodies to prevent memory
	// exhaustion from unexpectedly large pages.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxCrawlDepth bounds the navigation-crawl discovery
	// fallback.
	DefaultMaxCrawlDepth = 4
)

// Robots enforcement modes. See the politeness package for semantics.
const (
	// RobotsOff disables robots.txt handling entirely.
	RobotsOff = "off"

	// RobotsWarn logs disallowed URLs but fetches them anyway.
	RobotsWarn = "warn"

	// RobotsEnforce skips disallowed URLs. This is the default.
	RobotsEnforce = "enforce"

	// RobotsStrict aborts the operation on any disallowed URL.
	RobotsStrict = "strict"
)

// Config holds all configuration options for docdex. It is populated
// from CLI flags, validated once, and passed through the application by
// value semantics rather than global state.
//
// Design decision: One flat struct instead of nested per-component
// structs. The option count is manageable, and components pick the
// fields they need through their constructors.
type Config struct {
	// Name is the library name the cache entry is stored under.
	// Derived from the URL host when not set explicitly.
	Name string

	// Version is the version label for the cache entry ("latest" when
	// the caller does not pin one).
	Version string

	// BaseURL is the documentation site root to ingest.
	BaseURL string

	// RepoURL is an optional source repository URL, used by the
	// README discovery fallback when everything else fails.
	RepoURL string

	// CacheDir is the root directory for cache entries.
	// Defaults to the XDG cache directory.
	CacheDir string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CrawlDelay is the politeness delay between requests. A larger
	// robots.txt crawl-delay takes precedence.
	CrawlDelay time.Duration

	// MaxPages truncates the descriptor list for one operation.
	MaxPages int

	// MaxCrawlDepth bounds BFS depth in link-crawl discovery.
	MaxCrawlDepth int

	// Concurrency is the crawl worker pool size.
	Concurrency int

	// MaxRetries is the per-page fetch attempt budget.
	MaxRetries int

	// CheckpointEnabled turns progress checkpointing on or off.
	CheckpointEnabled bool

	// CheckpointInterval is the number of successful pages between
	// checkpoint saves.
	CheckpointInterval int

	// CheckpointMaxAge is how long a checkpoint stays resumable.
	CheckpointMaxAge time.Duration

	// RobotsMode selects robots.txt enforcement: off, warn, enforce,
	// or strict.
	RobotsMode string

	// UserAgent is sent with every HTTP request and used to select
	// the robots.txt rule group.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// Verbose enables debug-level logging.
	Verbose bool

	// JSONReport selects JSON summary output. Mutually exclusive
	// with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown summary output. Mutually
	// exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit .docdex config file path. Empty
	// means search the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds per-site overrides loaded from the config
	// file. Nil when no config file was found.
	SiteConfigs *File
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so relying on zero values would be wrong; this constructor
// also documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		Version:            "latest",
		CacheDir:           XDGCacheDir(),
		Timeout:            DefaultTimeout,
		CrawlDelay:         DefaultCrawlDelay,
		MaxPages:           DefaultMaxPages,
		MaxCrawlDepth:      DefaultMaxCrawlDepth,
		Concurrency:        DefaultConcurrency,
		MaxRetries:         DefaultMaxRetries,
		CheckpointEnabled:  true,
		CheckpointInterval: DefaultCheckpointInterval,
		CheckpointMaxAge:   DefaultCheckpointMaxAge,
		RobotsMode:         RobotsEnforce,
		UserAgent:          DefaultUserAgent,
		MaxBodySize:        DefaultMaxBodySize,
	}
}

// XDGCacheDir returns the XDG cache directory for docdex.
// On Linux: ~/.cache/docdex
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// XDGConfigDir returns the XDG config directory for docdex.
// On Linux: ~/.config/docdex
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the XDG data directory for docdex.
// On Linux: ~/.local/share/docdex
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// validRobotsModes is the set Validate accepts for RobotsMode.
var validRobotsModes = map[string]bool{
	RobotsOff:     true,
	RobotsWarn:    true,
	RobotsEnforce: true,
	RobotsStrict:  true,
}

// Validate checks the configuration and returns the first problem
// found. It is called once after CLI parsing, before any network or
// disk activity.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}
	if c.CheckpointInterval <= 0 {
		return ErrInvalidCheckpointInterval
	}
	if !validRobotsModes[c.RobotsMode] {
		return ErrInvalidRobotsMode
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// TargetID identifies the cache entry for checkpointing and logging.
func (c *Config) TargetID() string {
	return c.Name + "@" + c.Version
}
