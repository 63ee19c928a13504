package report

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs summaries in Markdown format. This format is
// designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	titler cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		titler:     cases.Title(language.English),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcome(md, summary)
	w.writeDiff(md, summary)
	w.writeFailures(md, summary)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Ingest Report: " + summary.Name + "@" + summary.Version)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Source URL", summary.SourceURL},
			{"Discovery", summary.Source},
			{"Operation", summary.Operation},
			{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Result.Duration.String()},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, summary *Summary) {
	r := summary.Result

	md.H2("Outcome")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Successful", "Failed", "Skipped"},
		Rows: [][]string{{
			strconv.Itoa(r.Successful),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
		}},
	})

	w.writePieChart(md, summary)

	switch {
	case r.Successful == 0:
		md.Caution("No page could be ingested. The cache entry was not updated.")
	case r.Failed > 0:
		md.Warningf("%d page(s) failed and are missing from the cache entry.", r.Failed)
	default:
		md.Tip("Every discovered page was ingested.")
	}
	if r.RateLimited {
		md.Important("The server rate-limited this run. Consider a longer crawl delay.")
	}
	if r.Resumed {
		md.Note("This run resumed from a checkpoint of an interrupted run.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of the page outcome mix.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *Summary) {
	r := summary.Result
	if r.Successful+r.Failed+r.Skipped == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcome Distribution"),
		piechart.WithShowData(true),
	)
	if r.Successful > 0 {
		chart.LabelAndIntValue("Successful", uint64(r.Successful))
	}
	if r.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(r.Failed))
	}
	if r.Skipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(r.Skipped))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeDiff(md *markdown.Markdown, summary *Summary) {
	if summary.Diff == nil {
		return
	}
	md.H2("Diff")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Unchanged", "Modified", "Added", "Removed"},
		Rows: [][]string{{
			strconv.Itoa(summary.Diff.Unchanged),
			strconv.Itoa(summary.Diff.Modified),
			strconv.Itoa(summary.Diff.Added),
			strconv.Itoa(summary.Diff.Removed),
		}},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *Summary) {
	if summary.Result.Failed == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	grouped := failedByCategory(summary.Result)
	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		pages := grouped[category]
		md.H3(w.titler.String(strings.ReplaceAll(category, "_", " ")))

		shown := len(pages)
		if shown > maxFailedURLs {
			shown = maxFailedURLs
		}
		items := make([]string, 0, shown+1)
		for _, p := range pages[:shown] {
			if p.StatusCode > 0 {
				items = append(items, p.URL+" (HTTP "+strconv.Itoa(p.StatusCode)+")")
			} else {
				items = append(items, p.URL+" ("+p.Message+")")
			}
		}
		if shown < len(pages) {
			items = append(items, "and "+strconv.Itoa(len(pages)-shown)+" more")
		}
		md.BulletList(items...)
		md.PlainText("")
	}
}
