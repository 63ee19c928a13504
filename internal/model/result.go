package model

import "time"

// CrawlResult summarizes one crawl run. A run that fetched zero of N
// pages is reported as a hard failure by the crawler; a partial run is
// a soft success and callers decide whether the failure count is
// acceptable.
type CrawlResult struct {
	// Successful is the number of pages fetched, extracted, and
	// persisted.
	Successful int `json:"successful"`

	// Failed is the number of pages that exhausted their retries.
	Failed int `json:"failed"`

	// Skipped is the number of pages not attempted: disallowed by
	// robots policy, filtered out, or truncated by the page limit.
	Skipped int `json:"skipped"`

	// Pages are the records appended to the manifest, in completion
	// order.
	Pages []PageRecord `json:"pages"`

	// FailedPages carries categorized detail for every failure.
	FailedPages []FailedPage `json:"failedPages,omitempty"`

	// RateLimited is set when any attempt in the run was classified
	// as rate limiting, regardless of whether the page eventually
	// succeeded.
	RateLimited bool `json:"rateLimited"`

	// Resumed is set when the run continued from a checkpoint.
	Resumed bool `json:"resumed"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// FailureCategories counts failed pages per error category.
func (r *CrawlResult) FailureCategories() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.FailedPages {
		counts[f.Category]++
	}
	return counts
}

// DiffStats totals the diff outcome per category. NeedsFetch is the
// work the orchestrator actually has to do on a resync.
type DiffStats struct {
	Unchanged  int `json:"unchanged"`
	Modified   int `json:"modified"`
	Added      int `json:"added"`
	Removed    int `json:"removed"`
	NeedsFetch int `json:"needsFetch"`
}

// DiffResult classifies every page of a fresh discovery against a
// previously cached manifest. It is derived per resync run and never
// persisted; only the modified and added sets feed the next crawl.
type DiffResult struct {
	// Unchanged are cached records whose page shows no change signal.
	Unchanged []PageRecord `json:"unchanged"`

	// Modified are fresh descriptors whose page appears changed.
	Modified []PageDescriptor `json:"modified"`

	// Added are fresh descriptors absent from the old manifest.
	Added []PageDescriptor `json:"added"`

	// Removed are cached records absent from the fresh discovery.
	Removed []PageRecord `json:"removed"`

	// Stats holds the per-category totals.
	Stats DiffStats `json:"stats"`
}

// NeedsFetch returns the descriptors a resync crawl must fetch:
// added pages plus modified pages.
func (d *DiffResult) NeedsFetch() []PageDescriptor {
	out := make([]PageDescriptor, 0, len(d.Added)+len(d.Modified))
	out = append(out, d.Modified...)
	out = append(out, d.Added...)
	return out
}
