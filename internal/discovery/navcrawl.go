package discovery

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/docdex/docdex/internal/extract"
	"github.com/docdex/docdex/internal/model"
)

// minNavLinks is the threshold below which framework navigation
// selectors are considered to have missed the menu and the crawl
// falls back to every same-origin link on the page.
const minNavLinks = 3

// navHTMLLimit bounds how much of a page is read during the
// navigation crawl. Pages are only parsed for links here, never
// stored.
const navHTMLLimit = 10 * 1024 * 1024

// navSelectors returns the CSS selector groups that locate the
// navigation menu for a detected documentation framework.
func navSelectors(framework string) []string {
	switch framework {
	case extract.FrameworkDocusaurus:
		return []string{".theme-doc-sidebar-menu a", "nav.menu a", ".menu__link"}
	case extract.FrameworkVitePress:
		return []string{".VPSidebar a", ".VPSidebarItem a", "aside a"}
	case extract.FrameworkMkDocs:
		return []string{".md-nav__link", ".md-nav a"}
	case extract.FrameworkSphinx:
		return []string{".sphinxsidebar a", ".toctree-wrapper a", "nav.wy-nav-side a"}
	case extract.FrameworkGitBook:
		return []string{"aside a", "nav a"}
	default:
		return []string{"nav a", "aside a", ".sidebar a", ".menu a"}
	}
}

// PolitenessChecker gates navigation fetches. politeness.Checker
// satisfies it.
type PolitenessChecker interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
	CrawlDelay(rawURL string) time.Duration
}

// NavStrategy discovers pages by crawling the site's own navigation.
// It is the most expensive strategy and runs only when no structured
// source (llms.txt, sitemap) exists.
type NavStrategy struct {
	client    *http.Client
	userAgent string
	limiter   PolitenessChecker
	logger    *slog.Logger

	// maxLinks bounds the number of descriptors returned.
	maxLinks int
	// maxDepth bounds how far the breadth-first walk strays from the
	// base page.
	maxDepth int
	// delay is the politeness pause between fetches when robots.txt
	// declares no crawl delay of its own.
	delay time.Duration
}

// NavOption configures a NavStrategy.
type NavOption func(*NavStrategy)

// WithNavMaxLinks bounds the number of pages the crawl may discover.
func WithNavMaxLinks(n int) NavOption {
	return func(s *NavStrategy) { s.maxLinks = n }
}

// WithNavMaxDepth bounds the link distance from the base page.
func WithNavMaxDepth(n int) NavOption {
	return func(s *NavStrategy) { s.maxDepth = n }
}

// WithNavDelay sets the default pause between navigation fetches.
func WithNavDelay(d time.Duration) NavOption {
	return func(s *NavStrategy) { s.delay = d }
}

// WithNavPoliteness installs a robots.txt checker. Without one the
// crawl fetches unconditionally.
func WithNavPoliteness(p PolitenessChecker) NavOption {
	return func(s *NavStrategy) { s.limiter = p }
}

// NewNavStrategy returns the navigation crawl strategy.
func NewNavStrategy(client *http.Client, userAgent string, logger *slog.Logger, opts ...NavOption) *NavStrategy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &NavStrategy{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		maxLinks:  500,
		maxDepth:  4,
		delay:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Strategy.
func (s *NavStrategy) Name() string { return "crawl" }

type navItem struct {
	url   string
	depth int
}

// Discover walks the site breadth-first starting at the base URL,
// harvesting links from navigation menus.
//
// Design decision: the walk is iterative with an explicit frontier
// queue rather than recursive. Documentation sites interlink heavily
// and recursion depth would track link count, not site depth.
func (s *NavStrategy) Discover(ctx context.Context, target Target) ([]model.PageDescriptor, error) {
	base, err := url.Parse(target.BaseURL)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	collected := make(map[string]bool)
	var descriptors []model.PageDescriptor

	collect := func(rawURL string) {
		key := model.NormalizeURL(rawURL)
		if collected[key] || len(descriptors) >= s.maxLinks {
			return
		}
		collected[key] = true
		descriptors = append(descriptors, model.PageDescriptor{URL: rawURL})
	}

	queue := []navItem{{url: target.BaseURL, depth: 0}}
	for len(queue) > 0 && len(descriptors) < s.maxLinks {
		if err := ctx.Err(); err != nil {
			return descriptors, err
		}

		item := queue[0]
		queue = queue[1:]

		key := model.NormalizeURL(item.url)
		if visited[key] {
			continue
		}
		visited[key] = true

		if s.limiter != nil {
			allowed, err := s.limiter.Allowed(ctx, item.url)
			if err != nil {
				return descriptors, err
			}
			if !allowed {
				continue
			}
		}

		links, err := s.fetchLinks(ctx, base, item.url)
		if err != nil {
			s.logger.Debug("nav fetch failed",
				slog.String("url", item.url),
				slog.String("error", err.Error()))
			continue
		}
		collect(item.url)

		if item.depth < s.maxDepth {
			for _, link := range links {
				collect(link)
				if !visited[model.NormalizeURL(link)] {
					queue = append(queue, navItem{url: link, depth: item.depth + 1})
				}
			}
		}

		if len(queue) > 0 {
			if err := s.pause(ctx, item.url); err != nil {
				return descriptors, err
			}
		}
	}
	return descriptors, nil
}

// pause waits the politeness delay before the next fetch. A robots
// crawl delay overrides the configured default.
func (s *NavStrategy) pause(ctx context.Context, lastURL string) error {
	delay := s.delay
	if s.limiter != nil {
		if d := s.limiter.CrawlDelay(lastURL); d > delay {
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

// fetchLinks fetches one page and returns the documentation links it
// references, preferring the navigation menu.
func (s *NavStrategy) fetchLinks(ctx context.Context, base *url.URL, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, navHTMLLimit))
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	pageBase, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	links := s.menuLinks(doc, base, pageBase)
	if len(links) < minNavLinks {
		links = s.allLinks(doc, base, pageBase)
	}
	return links, nil
}

// menuLinks collects links from the framework's navigation selectors.
func (s *NavStrategy) menuLinks(doc *goquery.Document, base, pageBase *url.URL) []string {
	framework := extract.DetectFramework(doc)
	var links []string
	seen := make(map[string]bool)
	for _, selector := range navSelectors(framework) {
		doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
			if link, ok := s.resolveLink(a, base, pageBase); ok && !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		})
		if len(links) >= minNavLinks {
			break
		}
	}
	return links
}

// allLinks collects every same-origin documentation link on the page.
func (s *NavStrategy) allLinks(doc *goquery.Document, base, pageBase *url.URL) []string {
	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if link, ok := s.resolveLink(a, base, pageBase); ok && !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

// resolveLink turns an anchor into an absolute same-origin docs URL.
func (s *NavStrategy) resolveLink(a *goquery.Selection, base, pageBase *url.URL) (string, bool) {
	href, exists := a.Attr("href")
	if !exists {
		return "", false
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := pageBase.ResolveReference(ref)
	abs.Fragment = ""

	link := abs.String()
	if !sameOrigin(base, link) || !docsPage(base, link) {
		return "", false
	}
	return link, true
}
