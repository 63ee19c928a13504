package politeness

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/temoto/robotstxt"
)

// DefaultPolicyTTL is how long a cached robots policy stays fresh.
// robots.txt files change rarely; a day keeps resyncs cheap without
// ignoring genuine policy changes for long.
const DefaultPolicyTTL = 24 * time.Hour

// Policy is the cached robots state for one domain. The raw robots.txt
// body is kept so the rule group can be re-parsed after a round trip
// through the disk cache; the parsed form does not serialize.
type Policy struct {
	// Domain is the host the policy applies to.
	Domain string `json:"domain"`

	// AllowAll is set for the explicit empty policy: a 404 response or
	// an unreadable robots.txt.
	AllowAll bool `json:"allowAll"`

	// RobotsTxt is the raw robots.txt body. Empty when AllowAll.
	RobotsTxt string `json:"robotsTxt,omitempty"`

	// CrawlDelay is the crawl-delay directive for our user agent.
	// Zero when the file declares none.
	CrawlDelay time.Duration `json:"crawlDelay"`

	// SitemapURLs are the Sitemap: locations the file declares.
	SitemapURLs []string `json:"sitemapUrls,omitempty"`

	// FetchedAt is when the policy was retrieved, for TTL checks.
	FetchedAt time.Time `json:"fetchedAt"`
}

// parsePolicy builds a Policy from a robots.txt response.
// Status 404 yields the explicit allow-all policy; robotstxt handles
// that mapping itself.
func parsePolicy(domain, userAgent string, statusCode int, body []byte, now time.Time) (*Policy, *robotstxt.Group, error) {
	data, err := robotstxt.FromStatusAndBytes(statusCode, body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse robots.txt for %s: %w", domain, err)
	}

	group := data.FindGroup(userAgent)

	p := &Policy{
		Domain:      domain,
		RobotsTxt:   string(body),
		SitemapURLs: data.Sitemaps,
		FetchedAt:   now,
	}
	if statusCode == 404 {
		p.AllowAll = true
		p.RobotsTxt = ""
	}
	if group != nil {
		p.CrawlDelay = group.CrawlDelay
	}

	return p, group, nil
}

// group re-parses the stored robots body and returns the rule group
// for the given user agent. AllowAll policies return a nil group,
// which callers treat as "everything allowed".
func (p *Policy) group(userAgent string) (*robotstxt.Group, error) {
	if p.AllowAll || p.RobotsTxt == "" {
		return nil, nil
	}
	data, err := robotstxt.FromString(p.RobotsTxt)
	if err != nil {
		return nil, fmt.Errorf("re-parse cached robots.txt for %s: %w", p.Domain, err)
	}
	return data.FindGroup(userAgent), nil
}

// IsStale reports whether the policy is older than ttl at the given
// time. A non-positive ttl falls back to DefaultPolicyTTL.
func (p *Policy) IsStale(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultPolicyTTL
	}
	return now.Sub(p.FetchedAt) > ttl
}

// Marshal serializes the policy for the disk cache.
func (p *Policy) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPolicy deserializes a policy from the disk cache.
func UnmarshalPolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal robots policy: %w", err)
	}
	return &p, nil
}
