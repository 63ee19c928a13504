// Package discovery finds the set of pages to ingest for a
// documentation site.
//
// Strategies are tried in a fixed chain, cheapest and most structured
// first:
//
//  1. llms.txt probing (a curated page list published by the site)
//  2. XML sitemaps (robots-declared locations, then well-known paths)
//  3. breadth-first navigation crawling with framework-aware selectors
//  4. repository README fallback (a single-page last resort)
//
// The first strategy returning a non-empty descriptor list wins.
// Strategy errors are logged and treated as "nothing found" so a
// broken sitemap never blocks the navigation crawl behind it; only
// full exhaustion of the chain is an error.
package discovery
