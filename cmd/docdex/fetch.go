package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/config"
	"github.com/docdex/docdex/internal/crawler"
	"github.com/docdex/docdex/internal/database"
	"github.com/docdex/docdex/internal/discovery"
	"github.com/docdex/docdex/internal/extract"
	"github.com/docdex/docdex/internal/log"
	"github.com/docdex/docdex/internal/model"
	"github.com/docdex/docdex/internal/politeness"
	"github.com/docdex/docdex/internal/report"
)

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a documentation site into the local cache",
		Long: `Fetch discovers the page list of a documentation site and downloads
every page into the local cache as extracted markdown.

Discovery tries, in order: an llms.txt index, the site's XML sitemap,
a crawl of the site's own navigation, and finally the README of the
source repository. The first source that yields pages wins.

Examples:
  # Fetch a documentation site under a derived name
  docdex fetch https://docs.example.com

  # Pin the cache entry name and version
  docdex fetch https://fastapi.tiangolo.com --name fastapi --tag 0.115

  # Fall back to the repository README when the site has no docs index
  docdex fetch https://example.com --repo https://github.com/example/example`,
		Args: cobra.ExactArgs(1),
		RunE: runFetchCmd,
	}

	cmd.Flags().StringP("name", "n", "", "Cache entry name (default: derived from the URL host)")
	cmd.Flags().StringP("tag", "t", "latest", "Version label for the cache entry")
	cmd.Flags().String("repo", "", "Source repository URL for the README fallback")
	cmd.Flags().String("cache-dir", "", "Cache root directory (default: XDG cache directory)")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages, "Maximum number of pages to fetch")
	cmd.Flags().Int("depth", config.DefaultMaxCrawlDepth, "Maximum link depth for navigation-crawl discovery")
	cmd.Flags().Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay, "Delay between requests (robots.txt may raise it)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency, "Number of concurrent page fetches")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries, "Fetch attempts per page before giving up")
	cmd.Flags().String("robots", config.RobotsEnforce, "robots.txt handling: off, warn, enforce, or strict")
	cmd.Flags().Bool("no-checkpoint", false, "Disable progress checkpointing for this run")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header sent with every request")
	cmd.Flags().StringP("config", "c", "", "Path to .docdex configuration file")
	cmd.Flags().Bool("json", false, "Output the summary as JSON")
	cmd.Flags().Bool("markdown", false, "Output the summary as Markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the summary to the specified file path (creates directories if needed)")

	return cmd
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildFetchConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runFetch(ctx, cfg, logger)
}

// buildFetchConfig creates a Config from fetch command flags.
func buildFetchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error

	cfg.BaseURL, err = normalizeBaseURL(args[0])
	if err != nil {
		return nil, err
	}

	cfg.Name, err = cmd.Flags().GetString("name")
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = deriveName(cfg.BaseURL)
	}

	cfg.Version, err = cmd.Flags().GetString("tag")
	if err != nil {
		return nil, err
	}

	cfg.RepoURL, err = cmd.Flags().GetString("repo")
	if err != nil {
		return nil, err
	}

	if err := readCommonFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.MaxCrawlDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	noCheckpoint, err := cmd.Flags().GetBool("no-checkpoint")
	if err != nil {
		return nil, err
	}
	cfg.CheckpointEnabled = !noCheckpoint

	if err := loadSiteConfigs(cmd, cfg); err != nil {
		return nil, err
	}

	applySiteOverrides(cfg)
	return cfg, nil
}

// readCommonFlags reads the flags fetch and sync share into cfg.
func readCommonFlags(cmd *cobra.Command, cfg *config.Config) error {
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("crawl-delay")
	if err != nil {
		return err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}

	cfg.MaxRetries, err = cmd.Flags().GetInt("max-retries")
	if err != nil {
		return err
	}

	cfg.RobotsMode, err = cmd.Flags().GetString("robots")
	if err != nil {
		return err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	return err
}

// loadSiteConfigs resolves and loads the .docdex config file.
// An explicitly specified path must exist; otherwise a missing file
// just means no per-site overrides.
func loadSiteConfigs(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	explicit := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath == "" {
		if explicit {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return nil
}

// applySiteOverrides folds the config file's per-site settings for the
// target host into cfg. CLI flags were already applied, so file values
// only take effect where they are set.
func applySiteOverrides(cfg *config.Config) {
	if cfg.SiteConfigs == nil || cfg.BaseURL == "" {
		return
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return
	}
	site := cfg.SiteConfigs.GetSiteConfig(u.Hostname())
	if site.CrawlDelayMs > 0 {
		cfg.CrawlDelay = time.Duration(site.CrawlDelayMs) * time.Millisecond
	}
	if site.MaxPages > 0 {
		cfg.MaxPages = site.MaxPages
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so
// an interrupted run can checkpoint before exiting.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// normalizeBaseURL validates the positional URL argument and defaults
// the scheme to https when none was given.
func normalizeBaseURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return model.NormalizeURL(u.String()), nil
}

// deriveName picks a cache entry name from the URL when --name is not
// given: the host without a leading www or docs label.
func deriveName(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	host := u.Hostname()
	for _, prefix := range []string{"www.", "docs."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}

// runFetch executes the fetch.
func runFetch(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting fetch",
		slog.String("url", cfg.BaseURL),
		slog.String("target", cfg.TargetID()))

	client := &http.Client{Timeout: cfg.Timeout}
	store := cache.New(cfg.CacheDir)

	history := openHistory(logger)
	if history != nil {
		defer history.Close()
	}

	checker, err := newPolitenessChecker(client, cfg, history, logger)
	if err != nil {
		return err
	}
	if checker != nil {
		if err := checker.Init(ctx, cfg.BaseURL); err != nil {
			logger.Warn("robots.txt unavailable", slog.String("error", err.Error()))
		}
	}

	chain := newDiscoveryChain(client, cfg, checker, logger)
	disc, err := chain.Discover(ctx, discovery.Target{
		BaseURL: cfg.BaseURL,
		Name:    cfg.Name,
		Version: cfg.Version,
		RepoURL: cfg.RepoURL,
	})
	if err != nil {
		if errors.Is(err, discovery.ErrNoSource) {
			return fmt.Errorf("no page source found for %s: the site offers no llms.txt, "+
				"sitemap, or crawlable navigation (try --repo for a README fallback)", cfg.BaseURL)
		}
		return fmt.Errorf("discovery failed: %w", err)
	}
	logger.Info("discovery complete",
		slog.String("source", disc.Source),
		slog.Int("pages", len(disc.Descriptors)))

	descriptors := filterDescriptors(cfg, disc.Descriptors)

	c := newCrawler(client, store, cfg, checker, history, logger)
	result, crawlErr := c.Crawl(ctx, crawler.Request{
		Name:              cfg.Name,
		Version:           cfg.Version,
		Operation:         "fetch",
		Descriptors:       descriptors,
		MaxPages:          cfg.MaxPages,
		DisableCheckpoint: !cfg.CheckpointEnabled,
	})

	// Persist what was fetched even when the run was interrupted or
	// partially failed; the checkpoint covers the rest.
	if result.Successful > 0 {
		pages := result.Pages
		if result.Resumed {
			pages = mergeResumedPages(store, cfg, descriptors, result.Pages)
		}
		if err := writeEntry(store, cfg, disc.Source, pages); err != nil {
			return err
		}
	}
	if crawlErr != nil {
		return fmt.Errorf("fetch failed: %w", crawlErr)
	}

	summary := &report.Summary{
		Name:        cfg.Name,
		Version:     cfg.Version,
		SourceURL:   cfg.BaseURL,
		Source:      disc.Source,
		Operation:   "fetch",
		GeneratedAt: time.Now().UTC(),
		Result:      result,
	}
	return outputSummary(cfg, summary)
}

// mergeResumedPages folds the prior run's manifest records into a
// resumed run's pages. Pages completed before the interruption are
// skipped by the resume, so their records only survive in the manifest
// the interrupted run left behind.
func mergeResumedPages(store *cache.Store, cfg *config.Config, descriptors []model.PageDescriptor, fetched []model.PageRecord) []model.PageRecord {
	old, err := store.ReadManifest(cfg.Name, cfg.Version)
	if err != nil {
		return fetched
	}
	refetched := make(map[string]bool, len(fetched))
	for _, p := range fetched {
		refetched[model.NormalizeURL(p.URL)] = true
	}
	byURL := old.ByURL()
	merged := make([]model.PageRecord, 0, len(fetched)+len(old.Pages))
	for _, d := range descriptors {
		u := model.NormalizeURL(d.URL)
		if refetched[u] {
			continue
		}
		if rec, ok := byURL[u]; ok {
			merged = append(merged, rec)
		}
	}
	return append(merged, fetched...)
}

// openHistory opens the fetch history database under the XDG data
// directory. History is advisory; failure to open degrades to no
// history rather than failing the run.
func openHistory(logger *slog.Logger) *database.HistoryDB {
	hdb, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		logger.Warn("fetch history unavailable", slog.String("error", err.Error()))
		return nil
	}
	return hdb
}

// newPolitenessChecker builds the robots.txt checker for the
// configured mode. Mode off returns nil: no policy is fetched and
// nothing is gated.
func newPolitenessChecker(client *http.Client, cfg *config.Config, history *database.HistoryDB, logger *slog.Logger) (*politeness.Checker, error) {
	if cfg.RobotsMode == config.RobotsOff {
		return nil, nil
	}
	mode, err := politeness.ParseMode(cfg.RobotsMode)
	if err != nil {
		return nil, err
	}

	opts := []politeness.Option{
		politeness.WithMode(mode),
		politeness.WithUserAgent(cfg.UserAgent),
		politeness.WithLogger(logger),
	}
	if history != nil {
		opts = append(opts, politeness.WithStore(history))
	}
	return politeness.New(client, opts...), nil
}

// newDiscoveryChain assembles the strategy chain in fallback order.
func newDiscoveryChain(client *http.Client, cfg *config.Config, checker *politeness.Checker, logger *slog.Logger) *discovery.Chain {
	navOpts := []discovery.NavOption{
		discovery.WithNavMaxLinks(cfg.MaxPages),
		discovery.WithNavMaxDepth(cfg.MaxCrawlDepth),
		discovery.WithNavDelay(cfg.CrawlDelay),
	}
	var robots discovery.SitemapSource
	if checker != nil {
		robots = checker
		navOpts = append(navOpts, discovery.WithNavPoliteness(checker))
	}

	return discovery.NewChain(logger,
		discovery.NewLLMSStrategy(client, cfg.UserAgent, logger),
		discovery.NewSitemapStrategy(client, cfg.UserAgent, robots, logger),
		discovery.NewNavStrategy(client, cfg.UserAgent, logger, navOpts...),
		discovery.NewReadmeStrategy(client, cfg.UserAgent, logger),
	)
}

// newCrawler assembles the page crawler from the configuration.
func newCrawler(client *http.Client, store *cache.Store, cfg *config.Config, checker *politeness.Checker, history *database.HistoryDB, logger *slog.Logger) *crawler.Crawler {
	opts := []crawler.Option{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithMaxRetries(cfg.MaxRetries),
		crawler.WithCrawlDelay(cfg.CrawlDelay),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithCheckpointInterval(cfg.CheckpointInterval),
		crawler.WithCheckpointMaxAge(cfg.CheckpointMaxAge),
	}
	if checker != nil {
		opts = append(opts, crawler.WithPoliteness(checker))
	}
	if history != nil {
		opts = append(opts, crawler.WithHistory(history))
	}
	if h := siteHeaders(cfg); len(h) > 0 {
		opts = append(opts, crawler.WithHeaders(h))
	}
	return crawler.New(client, store, extract.NewHTMLExtractor(), logger, opts...)
}

// siteHeaders returns the config file's custom headers for the target
// host, if any.
func siteHeaders(cfg *config.Config) map[string]string {
	if cfg.SiteConfigs == nil {
		return nil
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil
	}
	return cfg.SiteConfigs.GetSiteConfig(u.Hostname()).Headers
}

// filterDescriptors applies the config file's per-site path prefix and
// ignore patterns to the discovered page list.
func filterDescriptors(cfg *config.Config, descriptors []model.PageDescriptor) []model.PageDescriptor {
	if cfg.SiteConfigs == nil {
		return descriptors
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return descriptors
	}
	site := cfg.SiteConfigs.GetSiteConfig(u.Hostname())
	if site.PathPrefix == "" && len(site.IgnorePatterns) == 0 {
		return descriptors
	}

	kept := descriptors[:0:0]
	for _, d := range descriptors {
		du, err := url.Parse(d.URL)
		if err != nil {
			continue
		}
		if site.PathPrefix != "" && !strings.HasPrefix(du.Path, site.PathPrefix) {
			continue
		}
		if matchesAny(site.IgnorePatterns, du.Path) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// matchesAny reports whether any glob pattern matches the URL path.
// A pattern without a slash is matched against the last path element.
func matchesAny(patterns []string, urlPath string) bool {
	for _, pattern := range patterns {
		target := urlPath
		if !strings.Contains(pattern, "/") {
			target = path.Base(urlPath)
		}
		if ok, err := path.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

// writeEntry persists the manifest and index for a completed (or
// partially completed) run.
func writeEntry(store *cache.Store, cfg *config.Config, source string, pages []model.PageRecord) error {
	manifest := &model.Manifest{Pages: pages}
	if err := store.WriteManifest(cfg.Name, cfg.Version, manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	idx := &cache.Index{
		Name:       cfg.Name,
		Version:    cfg.Version,
		SourceURL:  cfg.BaseURL,
		SourceType: source,
		FetchedAt:  time.Now().UTC(),
		PageCount:  len(pages),
		TotalBytes: manifest.TotalBytes(),
		Artifacts: cache.Artifacts{
			Sitemap: true,
			Pages:   len(pages) > 0,
		},
	}
	if err := store.WriteIndex(idx); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// outputSummary writes the run summary in the requested format.
func outputSummary(cfg *config.Config, summary *report.Summary) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output)
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := writer.Write(summary)
	return err
}
