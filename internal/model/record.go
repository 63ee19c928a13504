package model

// PageRecord describes one successfully fetched and extracted page.
// It is the unit stored in the persisted manifest (sitemap.json).
// The normalized URL is the natural key.
type PageRecord struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// Title is the extracted page title. May be empty when extraction
	// found no usable title.
	Title string `json:"title"`

	// Filename is the page file name under the cache entry's pages/
	// directory, including the .md extension.
	Filename string `json:"filename"`

	// SizeBytes is the size of the extracted markdown content.
	SizeBytes int64 `json:"size"`

	// LastModified carries the sitemap <lastmod> hint from discovery,
	// when one was present. Used by the diff engine on resync.
	LastModified string `json:"lastmod,omitempty"`

	// ChangeFrequency carries the sitemap <changefreq> hint.
	ChangeFrequency string `json:"changefreq,omitempty"`

	// Priority carries the sitemap <priority> hint.
	Priority string `json:"priority,omitempty"`
}

// Manifest is the ordered page inventory for one (library, version)
// cache entry. It is written after a crawl and read back as the
// baseline for incremental syncs.
type Manifest struct {
	// Pages lists the records in the order they were retained.
	Pages []PageRecord `json:"pages"`
}

// ByURL returns the manifest's records indexed by normalized URL.
// Later duplicates overwrite earlier ones, matching the crawl's
// last-write-wins behavior.
func (m *Manifest) ByURL() map[string]PageRecord {
	index := make(map[string]PageRecord, len(m.Pages))
	for _, p := range m.Pages {
		index[NormalizeURL(p.URL)] = p
	}
	return index
}

// TotalBytes sums the extracted content size of all pages.
func (m *Manifest) TotalBytes() int64 {
	var total int64
	for _, p := range m.Pages {
		total += p.SizeBytes
	}
	return total
}

// FailedPage records a page that could not be fetched after retries,
// together with the categorized error that ended the attempts.
type FailedPage struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// Category is the error category from the classifier
	// (rate_limit, retryable, permanent, unknown).
	Category string `json:"category"`

	// StatusCode is the last HTTP status observed, or 0 for
	// transport-level failures.
	StatusCode int `json:"status_code,omitempty"`

	// Attempts is the number of fetch attempts made.
	Attempts int `json:"attempts"`

	// Message is the final error message.
	Message string `json:"message"`
}
