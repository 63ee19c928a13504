package model

import (
	"net/url"
	"sort"
	"strings"
)

// PageDescriptor is a discovered-but-not-yet-fetched page reference.
// Descriptors are produced by the discovery chain and consumed by the
// crawler. The optional fields carry sitemap hints when the page was
// found through a sitemap; they are empty for other discovery sources.
//
// Design decision: Every discovery strategy returns this single type
// rather than strategy-specific shapes. Normalizing at the discovery
// boundary means downstream code never branches on where a page came from.
type PageDescriptor struct {
	// URL is the absolute page URL, normalized via NormalizeURL.
	URL string `json:"url"`

	// LastModified is the sitemap <lastmod> value, if any.
	// Kept as the raw string; the diff engine parses it leniently.
	LastModified string `json:"lastmod,omitempty"`

	// ChangeFrequency is the sitemap <changefreq> value, if any.
	ChangeFrequency string `json:"changefreq,omitempty"`

	// Priority is the sitemap <priority> value, if any.
	Priority string `json:"priority,omitempty"`
}

// NewPageDescriptor creates a descriptor with a normalized URL.
func NewPageDescriptor(rawURL string) PageDescriptor {
	return PageDescriptor{URL: NormalizeURL(rawURL)}
}

// NormalizeURL canonicalizes a URL so that equivalent spellings map to
// the same cache entity:
//   - fragment is dropped (it never changes server content)
//   - scheme and host are lowercased
//   - a trailing slash is dropped except on the root path
//   - query parameters are sorted into a stable order
//
// Invalid URLs are returned unchanged; callers validate separately.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	if u.RawQuery != "" {
		u.RawQuery = canonicalQuery(u.RawQuery)
	}

	return u.String()
}

// canonicalQuery sorts query parameters by key (then value) so that
// ?b=2&a=1 and ?a=1&b=2 compare equal. Values are preserved as-is.
func canonicalQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}

// SameOrigin reports whether two URLs share a scheme and host.
// Comparison is case-insensitive on the host.
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}
