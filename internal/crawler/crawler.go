package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/database"
	"github.com/docdex/docdex/internal/extract"
	"github.com/docdex/docdex/internal/model"
	"github.com/docdex/docdex/internal/retry"
)

// ErrAllPagesFailed is returned when a run attempted pages and none
// succeeded. Partial failure is a soft success; total failure means
// the site is unreachable or actively refusing the crawl.
var ErrAllPagesFailed = errors.New("crawler: no page could be fetched")

// Crawler defaults.
const (
	// DefaultConcurrency is the worker pool size.
	DefaultConcurrency = 5

	// DefaultCheckpointInterval is how many completed pages trigger a
	// checkpoint save.
	DefaultCheckpointInterval = 10

	// DefaultCrawlDelay is the per-worker pause before each fetch when
	// robots.txt declares no delay.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultMaxBodySize bounds how much of a page body is read.
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// Politeness gates page fetches. politeness.Checker satisfies it.
type Politeness interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
	CrawlDelay(rawURL string) time.Duration
}

// HistoryRecorder receives one record per successful fetch. The
// sqlite history database satisfies it; recording failures only
// degrades history, never the crawl.
type HistoryRecorder interface {
	RecordFetch(ctx context.Context, record *database.FetchRecord) error
}

// Request describes one crawl run.
type Request struct {
	// Name and Version select the cache entry written to.
	Name    string
	Version string

	// Operation labels the checkpoint: "fetch" or "sync".
	Operation string

	// Descriptors is the full page list from discovery (or the diff's
	// needs-fetch subset on a sync).
	Descriptors []model.PageDescriptor

	// Allow optionally restricts the run to the listed URLs; pages
	// outside it are counted as skipped. Keys are normalized URLs.
	// Nil means everything is allowed.
	Allow map[string]bool

	// MaxPages truncates the descriptor list. Zero means no limit.
	MaxPages int

	// DisableCheckpoint turns off progress snapshots for this run.
	DisableCheckpoint bool
}

// Crawler downloads pages with a bounded worker pool.
type Crawler struct {
	client    *http.Client
	extractor extract.Extractor
	store     *cache.Store
	limiter   Politeness
	history   HistoryRecorder
	logger    *slog.Logger

	concurrency        int
	maxRetries         int
	crawlDelay         time.Duration
	userAgent          string
	headers            map[string]string
	maxBodySize        int64
	checkpointInterval int
	checkpointMaxAge   time.Duration
	backoff            retry.BackoffOptions
	now                func() time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxRetries sets the per-page attempt budget.
func WithMaxRetries(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithCrawlDelay sets the default pause before each fetch.
func WithCrawlDelay(d time.Duration) Option {
	return func(c *Crawler) { c.crawlDelay = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) { c.userAgent = ua }
}

// WithHeaders adds custom headers to every page request, e.g. an
// Authorization header for gated documentation.
func WithHeaders(h map[string]string) Option {
	return func(c *Crawler) { c.headers = h }
}

// WithMaxBodySize bounds how much of each page body is read.
func WithMaxBodySize(n int64) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithCheckpointInterval sets how many completed pages trigger a
// checkpoint save.
func WithCheckpointInterval(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.checkpointInterval = n
		}
	}
}

// WithCheckpointMaxAge sets how old a checkpoint may be before resume
// discards it. Non-positive values keep the model default.
func WithCheckpointMaxAge(d time.Duration) Option {
	return func(c *Crawler) { c.checkpointMaxAge = d }
}

// WithPoliteness installs a robots policy checker.
func WithPoliteness(p Politeness) Option {
	return func(c *Crawler) { c.limiter = p }
}

// WithHistory installs a fetch history recorder.
func WithHistory(h HistoryRecorder) Option {
	return func(c *Crawler) { c.history = h }
}

// WithBackoffOptions overrides retry timing. Mainly for tests.
func WithBackoffOptions(o retry.BackoffOptions) Option {
	return func(c *Crawler) { c.backoff = o }
}

// WithNow overrides the clock. Mainly for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// New creates a Crawler writing into store and extracting with
// extractor.
func New(client *http.Client, store *cache.Store, extractor extract.Extractor, logger *slog.Logger, opts ...Option) *Crawler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Crawler{
		client:             client,
		extractor:          extractor,
		store:              store,
		logger:             logger,
		concurrency:        DefaultConcurrency,
		maxRetries:         retry.DefaultMaxAttempts,
		crawlDelay:         DefaultCrawlDelay,
		userAgent:          "docdex/1.0",
		maxBodySize:        DefaultMaxBodySize,
		checkpointInterval: DefaultCheckpointInterval,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl runs one ingest over the request's descriptors.
//
// Design decision: page failures never cancel the pool. Each worker
// records its outcome and returns nil; only context cancellation
// stops the run early, and then the checkpoint makes the progress
// resumable. The zero-success case is turned into an error after the
// pool drains, when the full picture is known.
func (c *Crawler) Crawl(ctx context.Context, req Request) (*model.CrawlResult, error) {
	start := c.now()
	result := &model.CrawlResult{}

	descriptors := req.Descriptors
	if req.MaxPages > 0 && len(descriptors) > req.MaxPages {
		c.logger.Warn("page list truncated",
			slog.Int("discovered", len(descriptors)),
			slog.Int("limit", req.MaxPages))
		result.Skipped += len(descriptors) - req.MaxPages
		descriptors = descriptors[:req.MaxPages]
	}

	if req.Allow != nil {
		kept := descriptors[:0:0]
		for _, d := range descriptors {
			if req.Allow[model.NormalizeURL(d.URL)] {
				kept = append(kept, d)
			} else {
				result.Skipped++
			}
		}
		descriptors = kept
	}

	cp, descriptors := c.resume(req, descriptors, result)

	var manager *checkpointManager
	if !req.DisableCheckpoint {
		manager = newCheckpointManager(c.store, req.Name, req.Version, cp, c.checkpointInterval, c.logger, c.now)
	}

	attempted := len(descriptors)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, d := range descriptors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome := c.crawlPage(gctx, req, d)

			mu.Lock()
			defer mu.Unlock()
			if outcome.rateLimited {
				result.RateLimited = true
				manager.noteRateLimit()
			}
			switch {
			case outcome.skipped:
				result.Skipped++
				manager.markFailed(d.URL)
			case outcome.failure != nil:
				result.Failed++
				result.FailedPages = append(result.FailedPages, *outcome.failure)
				manager.markFailed(d.URL)
			default:
				result.Successful++
				result.Pages = append(result.Pages, *outcome.record)
				manager.markCompleted(d.URL)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Interrupted: force a final snapshot so the run can resume.
		manager.save(true)
		result.Duration = c.now().Sub(start)
		return result, err
	}

	manager.finish()
	result.Duration = c.now().Sub(start)

	if attempted > 0 && result.Successful == 0 {
		return result, fmt.Errorf("%w: %d pages attempted", ErrAllPagesFailed, attempted)
	}
	return result, nil
}

// resume loads a prior checkpoint and filters out already completed
// pages. The returned checkpoint is the one the run continues with,
// freshly created when nothing resumable exists.
func (c *Crawler) resume(req Request, descriptors []model.PageDescriptor, result *model.CrawlResult) (*model.Checkpoint, []model.PageDescriptor) {
	targetID := req.Name + "@" + req.Version

	if req.DisableCheckpoint {
		return model.NewCheckpoint(req.Operation, targetID, descriptors), descriptors
	}

	cp, err := c.store.LoadCheckpoint(req.Name, req.Version)
	if err != nil {
		if !errors.Is(err, cache.ErrNoCheckpoint) {
			c.logger.Warn("checkpoint unreadable", slog.String("error", err.Error()))
		}
		return model.NewCheckpoint(req.Operation, targetID, descriptors), descriptors
	}

	if cp.TargetID != targetID || cp.Operation != req.Operation || cp.IsStale(c.now(), c.checkpointMaxAge) {
		c.logger.Info("discarding unusable checkpoint",
			slog.String("targetId", cp.TargetID),
			slog.String("operation", cp.Operation),
			slog.Time("lastSavedAt", cp.LastSavedAt))
		if err := c.store.RemoveCheckpoint(req.Name, req.Version); err != nil {
			c.logger.Warn("checkpoint removal failed", slog.String("error", err.Error()))
		}
		return model.NewCheckpoint(req.Operation, targetID, descriptors), descriptors
	}

	completed := cp.CompletedSet()
	remaining := descriptors[:0:0]
	for _, d := range descriptors {
		if completed[model.NormalizeURL(d.URL)] {
			result.Skipped++
			continue
		}
		remaining = append(remaining, d)
	}

	if len(remaining) < len(descriptors) {
		result.Resumed = true
		c.logger.Info("resuming from checkpoint",
			slog.Int("completed", len(descriptors)-len(remaining)),
			slog.Int("remaining", len(remaining)))
	}
	return cp, remaining
}

// pageOutcome is the per-page result a worker hands back.
type pageOutcome struct {
	record      *model.PageRecord
	failure     *model.FailedPage
	skipped     bool
	rateLimited bool
}

// crawlPage handles one descriptor end to end: politeness, delay,
// fetch with retries, extraction, cache write.
func (c *Crawler) crawlPage(ctx context.Context, req Request, d model.PageDescriptor) pageOutcome {
	if c.limiter != nil {
		allowed, err := c.limiter.Allowed(ctx, d.URL)
		if err != nil {
			return pageOutcome{failure: &model.FailedPage{
				URL:      d.URL,
				Category: string(retry.CategoryPermanent),
				Message:  err.Error(),
			}}
		}
		if !allowed {
			c.logger.Info("page disallowed by robots policy", slog.String("url", d.URL))
			return pageOutcome{skipped: true}
		}
	}

	if err := c.pause(ctx, d.URL); err != nil {
		return pageOutcome{failure: failedFromError(d.URL, 0, err)}
	}

	body, status, contentType, catErr := c.fetchWithRetry(ctx, d.URL)
	outcome := pageOutcome{rateLimited: catErr != nil && catErr.Category == retry.CategoryRateLimit}
	if catErr != nil && body == nil {
		outcome.failure = &model.FailedPage{
			URL:        d.URL,
			Category:   string(catErr.Category),
			StatusCode: catErr.StatusCode,
			Attempts:   c.maxRetries,
			Message:    catErr.Message,
		}
		return outcome
	}

	page, err := c.buildPage(d.URL, body, contentType)
	if err != nil {
		outcome.failure = &model.FailedPage{
			URL:      d.URL,
			Category: string(retry.CategoryPermanent),
			Message:  err.Error(),
		}
		return outcome
	}

	filename, size, err := c.store.WritePage(req.Name, req.Version, page)
	if err != nil {
		outcome.failure = &model.FailedPage{
			URL:      d.URL,
			Category: string(retry.CategoryUnknown),
			Message:  err.Error(),
		}
		return outcome
	}

	c.recordHistory(ctx, req, d.URL, status, page)

	outcome.record = &model.PageRecord{
		URL:             model.NormalizeURL(d.URL),
		Title:           page.Title,
		Filename:        filename,
		SizeBytes:       size,
		LastModified:    d.LastModified,
		ChangeFrequency: d.ChangeFrequency,
		Priority:        d.Priority,
	}
	return outcome
}

// pause waits the politeness delay, preferring a robots-declared
// crawl delay over the configured default when it is longer.
func (c *Crawler) pause(ctx context.Context, rawURL string) error {
	delay := c.crawlDelay
	if c.limiter != nil {
		if d := c.limiter.CrawlDelay(rawURL); d > delay {
			delay = d
		}
	}
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// fetchWithRetry fetches one URL under the retry budget. On success
// the body and status are returned with a nil error; the returned
// CategorizedError may still be non-nil to propagate that rate
// limiting was observed along the way.
func (c *Crawler) fetchWithRetry(ctx context.Context, rawURL string) (body []byte, status int, contentType string, catErr *retry.CategorizedError) {
	var sawRateLimit bool
	for attempt := 0; ; attempt++ {
		body, status, contentType, catErr = c.fetchOnce(ctx, rawURL)
		if catErr == nil {
			if sawRateLimit {
				return body, status, contentType, &retry.CategorizedError{Category: retry.CategoryRateLimit}
			}
			return body, status, contentType, nil
		}
		if catErr.Category == retry.CategoryRateLimit {
			sawRateLimit = true
		}

		if !retry.ShouldRetry(catErr, attempt, c.maxRetries) {
			return nil, status, contentType, catErr
		}

		wait := retry.Backoff(attempt, catErr, c.backoff)
		c.logger.Debug("retrying page",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.String("category", string(catErr.Category)),
			slog.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return nil, status, contentType, retry.Classify(0, nil, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// fetchOnce performs a single GET.
func (c *Crawler) fetchOnce(ctx context.Context, rawURL string) ([]byte, int, string, *retry.CategorizedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, "", &retry.CategorizedError{Category: retry.CategoryPermanent, Message: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, "", retry.Classify(0, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, "", retry.Classify(resp.StatusCode, resp.Header, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, "", retry.Classify(0, nil, err)
	}
	return body, resp.StatusCode, resp.Header.Get("Content-Type"), nil
}

// buildPage converts a fetched body into a cacheable page. Non-HTML
// bodies (raw README files, markdown served as text/plain) are stored
// as-is.
func (c *Crawler) buildPage(rawURL string, body []byte, contentType string) (*cache.Page, error) {
	page := &cache.Page{URL: model.NormalizeURL(rawURL), ExtractedAt: c.now().UTC()}

	if isHTML(contentType, body) {
		result, err := c.extractor.Extract(body, rawURL)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", rawURL, err)
		}
		page.Title = result.Title
		page.Markdown = result.Markdown
		return page, nil
	}

	text := strings.TrimSpace(string(body))
	page.Markdown = text
	for _, line := range strings.SplitN(text, "\n", 10) {
		if rest, found := strings.CutPrefix(strings.TrimSpace(line), "# "); found {
			page.Title = strings.TrimSpace(rest)
			break
		}
	}
	return page, nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 256)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// recordHistory writes the fetch to the history database, if one is
// attached.
func (c *Crawler) recordHistory(ctx context.Context, req Request, rawURL string, status int, page *cache.Page) {
	if c.history == nil {
		return
	}
	sum := sha256.Sum256([]byte(page.Markdown))
	record := &database.FetchRecord{
		URL:         model.NormalizeURL(rawURL),
		Target:      req.Name + "@" + req.Version,
		StatusCode:  status,
		ContentHash: hex.EncodeToString(sum[:]),
		Title:       page.Title,
	}
	if err := c.history.RecordFetch(ctx, record); err != nil {
		c.logger.Debug("fetch history write failed", slog.String("error", err.Error()))
	}
}

func failedFromError(rawURL string, status int, err error) *model.FailedPage {
	catErr := retry.Classify(status, nil, err)
	return &model.FailedPage{
		URL:        rawURL,
		Category:   string(catErr.Category),
		StatusCode: status,
		Message:    err.Error(),
	}
}
