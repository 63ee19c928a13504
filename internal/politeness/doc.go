// Package politeness implements robots.txt compliance for crawling.
//
// A Checker fetches, caches, and enforces per-domain robots policies:
// allow/disallow rules for the configured user agent, the crawl-delay
// directive, and declared sitemap locations. Policies are cached in
// memory for the run and, when a store is attached, on disk with a
// 24-hour TTL so repeated syncs do not refetch robots.txt.
//
// Failure handling is deliberately forgiving: a missing or unreadable
// robots.txt is treated as allow-all. Only strict mode turns robots
// problems into errors.
package politeness
