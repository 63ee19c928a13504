// Package crawler fetches discovered pages with bounded concurrency
// and writes them into the cache.
//
// The crawler is the only component that downloads page content. It
// honors robots policy per page, retries with categorized backoff,
// hands bodies to the extraction collaborator, and snapshots its
// progress to a checkpoint so an interrupted run can resume. Checkpoint
// persistence is strictly best effort: a failing disk write degrades
// resumability, never the crawl itself.
package crawler
