package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SimpleWriter outputs human-readable text summaries.
//
// Design decision: We use plain text with ASCII formatting rather
// than ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose lists every failing URL instead of the first few.
	verbose bool

	titler cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with every failing URL listed.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		titler:     cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeDiff(&sb, summary)
	w.writeFailures(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  %s@%s\n", summary.Name, summary.Version)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Source URL: %s\n", summary.SourceURL)
	fmt.Fprintf(sb, "Discovery:  %s\n", summary.Source)
	fmt.Fprintf(sb, "Operation:  %s\n", summary.Operation)
	fmt.Fprintf(sb, "Duration:   %s\n", summary.Result.Duration.Round(durationPrecision(summary)))
	if summary.Result.Resumed {
		sb.WriteString("Resumed:    yes (continued from checkpoint)\n")
	}
	if summary.Result.RateLimited {
		sb.WriteString("Rate limit: encountered during the run\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *Summary) {
	r := summary.Result
	fmt.Fprintf(sb, "  Successful: %d\n", r.Successful)
	fmt.Fprintf(sb, "  Failed:     %d\n", r.Failed)
	fmt.Fprintf(sb, "  Skipped:    %d\n", r.Skipped)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDiff(sb *strings.Builder, summary *Summary) {
	if summary.Diff == nil {
		return
	}
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nDIFF\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	fmt.Fprintf(sb, "  Unchanged: %d\n", summary.Diff.Unchanged)
	fmt.Fprintf(sb, "  Modified:  %d\n", summary.Diff.Modified)
	fmt.Fprintf(sb, "  Added:     %d\n", summary.Diff.Added)
	fmt.Fprintf(sb, "  Removed:   %d\n", summary.Diff.Removed)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *Summary) {
	if summary.Result.Failed == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nFAILURES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	grouped := failedByCategory(summary.Result)
	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		pages := grouped[category]
		fmt.Fprintf(sb, "[%s] %d page(s)\n", w.titler.String(strings.ReplaceAll(category, "_", " ")), len(pages))
		shown := len(pages)
		if !w.verbose && shown > maxFailedURLs {
			shown = maxFailedURLs
		}
		for _, p := range pages[:shown] {
			if p.StatusCode > 0 {
				fmt.Fprintf(sb, "  * %s (HTTP %d)\n", p.URL, p.StatusCode)
			} else {
				fmt.Fprintf(sb, "  * %s (%s)\n", p.URL, p.Message)
			}
		}
		if shown < len(pages) {
			fmt.Fprintf(sb, "  ... and %d more\n", len(pages)-shown)
		}
		sb.WriteString("\n")
	}
}

// durationPrecision picks a sensible rounding for the duration line:
// millisecond for short runs, second for everything else.
func durationPrecision(summary *Summary) time.Duration {
	if summary.Result.Duration < time.Minute {
		return time.Millisecond
	}
	return time.Second
}
