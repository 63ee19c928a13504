package report

import (
	"io"
	"time"

	"github.com/docdex/docdex/internal/model"
)

// maxFailedURLs limits how many failing URLs a report lists per
// category; the counts always cover everything.
const maxFailedURLs = 5

// Summary is the renderable outcome of one fetch or sync run.
type Summary struct {
	// Name and Version identify the cache entry.
	Name    string `json:"name"`
	Version string `json:"version"`

	// SourceURL is the documentation base URL that was ingested.
	SourceURL string `json:"sourceUrl"`

	// Source names the discovery strategy that produced the page
	// list: llms, sitemap, crawl, or readme.
	Source string `json:"source"`

	// Operation is "fetch" or "sync".
	Operation string `json:"operation"`

	// GeneratedAt is when the summary was rendered.
	GeneratedAt time.Time `json:"generatedAt"`

	// Result is the crawl outcome.
	Result *model.CrawlResult `json:"result"`

	// Diff carries the per-category diff totals on a sync run.
	// Nil on a full fetch.
	Diff *model.DiffStats `json:"diff,omitempty"`
}

// Writer defines the interface for summary output.
//
// Design decision: We use an interface to allow different output
// formats and destinations. This enables writing to files, stdout, or
// network connections with the same API.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously, typically
// terminal plus file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different from
// io.Writer - we write summaries, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers. Returns the
// total bytes written across all writers and stops on the first
// error.
func (m *MultiWriter) Write(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// failedByCategory groups failing pages per category, preserving
// result order inside each group.
func failedByCategory(result *model.CrawlResult) map[string][]model.FailedPage {
	grouped := make(map[string][]model.FailedPage)
	for _, f := range result.FailedPages {
		grouped[f.Category] = append(grouped[f.Category], f)
	}
	return grouped
}
