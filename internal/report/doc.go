// Package report renders crawl run summaries.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: markdown for documentation and sharing
//
// Design decision: We separate report writing from the result data
// structures (which live in the model package) so new output formats
// can be added without touching the crawl pipeline. Writers implement
// one Writer interface and compose through MultiWriter for
// multi-destination output.
package report
