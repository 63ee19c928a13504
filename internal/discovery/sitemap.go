package discovery

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/docdex/docdex/internal/model"
)

// Bounds on sitemap index recursion. Real sites nest one level; the
// limits only exist to stop pathological self-referencing indexes.
const (
	maxSitemapDepth   = 3
	maxSitemapFetches = 50
)

// wellKnownSitemaps are probed when robots.txt declares no sitemap.
var wellKnownSitemaps = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/docs/sitemap.xml",
}

// SitemapSource supplies the sitemap locations a robots.txt declared
// for a URL's domain. politeness.Checker satisfies it.
type SitemapSource interface {
	SitemapURLs(rawURL string) []string
}

// SitemapStrategy discovers pages from XML sitemaps.
type SitemapStrategy struct {
	client    *http.Client
	userAgent string
	robots    SitemapSource
	logger    *slog.Logger
}

// NewSitemapStrategy returns the sitemap strategy. robots may be nil,
// in which case only the well-known locations are probed.
func NewSitemapStrategy(client *http.Client, userAgent string, robots SitemapSource, logger *slog.Logger) *SitemapStrategy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SitemapStrategy{client: client, userAgent: userAgent, robots: robots, logger: logger}
}

// Name implements Strategy.
func (s *SitemapStrategy) Name() string { return "sitemap" }

// Discover fetches candidate sitemaps and flattens them into page
// descriptors, following sitemap index files recursively.
func (s *SitemapStrategy) Discover(ctx context.Context, target Target) ([]model.PageDescriptor, error) {
	base, err := url.Parse(target.BaseURL)
	if err != nil {
		return nil, err
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}

	// Robots-declared sitemaps come first: they are authoritative
	// where the well-known paths are guesses.
	var candidates []string
	if s.robots != nil {
		candidates = append(candidates, s.robots.SitemapURLs(target.BaseURL)...)
	}
	for _, p := range wellKnownSitemaps {
		candidates = append(candidates, origin.JoinPath(p).String())
	}

	fetches := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		descriptors := s.walk(ctx, base, candidate, 0, &fetches)
		if len(descriptors) > 0 {
			return descriptors, nil
		}
	}
	return nil, nil
}

// walk fetches one sitemap URL and returns its pages, recursing into
// sitemap index entries up to the depth and fetch bounds.
func (s *SitemapStrategy) walk(ctx context.Context, base *url.URL, sitemapURL string, depth int, fetches *int) []model.PageDescriptor {
	if depth > maxSitemapDepth || *fetches >= maxSitemapFetches {
		return nil
	}
	*fetches++

	body, status, _, err := fetch(ctx, s.client, sitemapURL, s.userAgent)
	if err != nil || status != http.StatusOK {
		if err != nil {
			s.logger.Debug("sitemap fetch failed", slog.String("url", sitemapURL), slog.String("error", err.Error()))
		}
		return nil
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("sitemap parse failed", slog.String("url", sitemapURL), slog.String("error", err.Error()))
		return nil
	}

	// Index files delegate to child sitemaps.
	if xmlquery.FindOne(doc, "//sitemapindex") != nil {
		var descriptors []model.PageDescriptor
		for _, node := range xmlquery.Find(doc, "//sitemapindex/sitemap/loc") {
			child := strings.TrimSpace(node.InnerText())
			if child == "" {
				continue
			}
			descriptors = append(descriptors, s.walk(ctx, base, child, depth+1, fetches)...)
		}
		return descriptors
	}

	var descriptors []model.PageDescriptor
	for _, node := range xmlquery.Find(doc, "//urlset/url") {
		loc := node.SelectElement("loc")
		if loc == nil {
			continue
		}
		pageURL := strings.TrimSpace(loc.InnerText())
		if pageURL == "" || !sameOrigin(base, pageURL) || !docsPage(base, pageURL) {
			continue
		}

		d := model.PageDescriptor{URL: pageURL}
		if n := node.SelectElement("lastmod"); n != nil {
			d.LastModified = strings.TrimSpace(n.InnerText())
		}
		if n := node.SelectElement("changefreq"); n != nil {
			d.ChangeFrequency = strings.TrimSpace(n.InnerText())
		}
		if n := node.SelectElement("priority"); n != nil {
			d.Priority = strings.TrimSpace(n.InnerText())
		}
		descriptors = append(descriptors, d)
	}
	return descriptors
}
