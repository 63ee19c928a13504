package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/config"
	"github.com/docdex/docdex/internal/crawler"
	"github.com/docdex/docdex/internal/diff"
	"github.com/docdex/docdex/internal/discovery"
	"github.com/docdex/docdex/internal/log"
	"github.com/docdex/docdex/internal/model"
	"github.com/docdex/docdex/internal/report"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <name[@version]>",
		Short: "Refresh a cached documentation set incrementally",
		Long: `Sync rediscovers the page list of an already cached documentation set
and refetches only the pages that were added or look modified.
Unchanged pages keep their cached content; pages gone from the site are
dropped from the manifest.

Examples:
  # Sync the latest cached version
  docdex sync fastapi

  # Sync a pinned version
  docdex sync fastapi@0.115`,
		Args: cobra.ExactArgs(1),
		RunE: runSyncCmd,
	}

	cmd.Flags().String("cache-dir", "", "Cache root directory (default: XDG cache directory)")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages, "Maximum number of pages to fetch")
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

// runSyncCmd executes the sync command.
func runSyncCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildSyncConfig(cmd, args)
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

	return runSync(ctx, cfg, logger)
}

// buildSyncConfig creates a Config from sync command flags. The base
// URL comes from the cached index, not a flag, so it is filled in by
// runSync after the index is read.
func buildSyncConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Name, cfg.Version = parseTarget(args[0])

	if err := readCommonFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
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
	return cfg, nil
}

// parseTarget splits a name[@version] argument. The version defaults
// to "latest". Only the last @ counts, so scoped names survive.
func parseTarget(arg string) (name, version string) {
	if i := strings.LastIndex(arg, "@"); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, "latest"
}

// runSync executes the sync.
func runSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store := cache.New(cfg.CacheDir)

	idx, err := store.ReadIndex(cfg.Name, cfg.Version)
	if err != nil {
		if errors.Is(err, cache.ErrNotCached) {
			return fmt.Errorf("%s is not cached: run 'docdex fetch' first", cfg.TargetID())
		}
		return fmt.Errorf("failed to read cache index: %w", err)
	}
	old, err := store.ReadManifest(cfg.Name, cfg.Version)
	if err != nil {
		return fmt.Errorf("failed to read cached manifest: %w", err)
	}

	cfg.BaseURL = idx.SourceURL
	applySiteOverrides(cfg)

	logger.Info("starting sync",
		slog.String("url", cfg.BaseURL),
		slog.String("target", cfg.TargetID()),
		slog.Int("cachedPages", len(old.Pages)))

	client := &http.Client{Timeout: cfg.Timeout}

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
	})
	if err != nil {
		if errors.Is(err, discovery.ErrNoSource) {
			return fmt.Errorf("no page source found for %s: the site no longer offers "+
				"an llms.txt, sitemap, or crawlable navigation", cfg.BaseURL)
		}
		return fmt.Errorf("discovery failed: %w", err)
	}

	descriptors := filterDescriptors(cfg, disc.Descriptors)
	delta := diff.Diff(old, descriptors)
	logger.Info("diff complete",
		slog.Int("unchanged", delta.Stats.Unchanged),
		slog.Int("modified", delta.Stats.Modified),
		slog.Int("added", delta.Stats.Added),
		slog.Int("removed", delta.Stats.Removed))

	needs := delta.NeedsFetch()
	result := &model.CrawlResult{}
	if len(needs) > 0 {
		allow := make(map[string]bool, len(needs))
		for _, d := range needs {
			allow[model.NormalizeURL(d.URL)] = true
		}

		c := newCrawler(client, store, cfg, checker, history, logger)
		result, err = c.Crawl(ctx, crawler.Request{
			Name:              cfg.Name,
			Version:           cfg.Version,
			Operation:         "sync",
			Descriptors:       needs,
			Allow:             allow,
			MaxPages:          cfg.MaxPages,
			DisableCheckpoint: !cfg.CheckpointEnabled,
		})
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
	}

	// The new manifest keeps unchanged records in their cached order
	// and appends everything refetched in this run. A modified page
	// whose refetch failed keeps its cached record; the stale copy on
	// disk beats a hole in the entry.
	pages := append(delta.Unchanged, result.Pages...)
	if len(result.FailedPages) > 0 {
		byURL := old.ByURL()
		for _, f := range result.FailedPages {
			if rec, ok := byURL[model.NormalizeURL(f.URL)]; ok {
				pages = append(pages, rec)
			}
		}
	}
	merged := &model.Manifest{Pages: pages}
	if err := store.WriteManifest(cfg.Name, cfg.Version, merged); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	idx.SourceType = disc.Source
	idx.FetchedAt = time.Now().UTC()
	idx.PageCount = len(merged.Pages)
	idx.TotalBytes = merged.TotalBytes()
	idx.Artifacts.Pages = len(merged.Pages) > 0
	if err := store.WriteIndex(idx); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	summary := &report.Summary{
		Name:        cfg.Name,
		Version:     cfg.Version,
		SourceURL:   cfg.BaseURL,
		Source:      disc.Source,
		Operation:   "sync",
		GeneratedAt: time.Now().UTC(),
		Result:      result,
		Diff:        &delta.Stats,
	}
	return outputSummary(cfg, summary)
}
