package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// chromeSelectors are stripped from the content region before
// conversion. They cover the shells common documentation generators
// wrap around the page body.
var chromeSelectors = []string{
	"script", "style", "noscript", "iframe", "svg",
	"nav", "header", "footer", "aside",
	`[role="navigation"]`, `[role="banner"]`, `[role="contentinfo"]`,
	".sidebar", ".navbar", ".breadcrumbs", ".toc", ".table-of-contents",
	".theme-doc-toc-desktop", ".theme-doc-toc-mobile", ".pagination-nav",
	".edit-this-page", ".md-sidebar", ".md-header", ".md-footer",
	".VPNav", ".VPSidebar", ".VPDocAside", ".VPDocFooter",
	".sphinxsidebar", ".headerlink",
}

var excessiveBlankLines = regexp.MustCompile(`\n{3,}`)

// minContentRunes is the threshold below which selector-based
// extraction is considered to have missed the content and the
// readability fallback kicks in.
const minContentRunes = 80

// Result is the outcome of converting one fetched HTML page.
type Result struct {
	// Markdown is the converted page body.
	Markdown string
	// Title is taken from the document title, falling back to the
	// first H1 and then to readability's guess.
	Title string
	// Description is the meta description when the page declares one.
	Description string
	// Framework is the detected documentation generator.
	Framework string
}

// Extractor converts raw HTML into markdown suitable for the page
// cache. pageURL is the absolute URL the body was fetched from and is
// used to resolve relative links.
type Extractor interface {
	Extract(body []byte, pageURL string) (*Result, error)
}

// HTMLExtractor is the default Extractor. It is safe for concurrent
// use once constructed.
type HTMLExtractor struct {
	converter *md.Converter
}

var _ Extractor = (*HTMLExtractor)(nil)

// NewHTMLExtractor returns an extractor producing GitHub flavored
// markdown.
func NewHTMLExtractor() *HTMLExtractor {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &HTMLExtractor{converter: conv}
}

// Extract converts body to markdown.
//
// Design decision: selector-based extraction runs first because it
// preserves reference material (API tables, code blocks) that
// readability's scoring tends to discard as boilerplate. Readability
// is only a fallback for layouts the selectors do not recognize.
func (e *HTMLExtractor) Extract(body []byte, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	result := &Result{
		Framework:   DetectFramework(doc),
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: metaDescription(doc),
	}

	content := e.selectContent(doc, result.Framework, pageURL)
	if runeCount(content) < minContentRunes {
		if markdown, title, ok := e.readabilityFallback(body, pageURL); ok {
			content = markdown
			if result.Title == "" {
				result.Title = title
			}
		}
	}
	if result.Title == "" {
		result.Title = firstHeading(content)
	}

	result.Markdown = tidyMarkdown(content)
	return result, nil
}

// selectContent locates the content region with framework selectors,
// strips chrome, and converts it. Returns "" when nothing matched or
// conversion failed.
func (e *HTMLExtractor) selectContent(doc *goquery.Document, framework, pageURL string) string {
	for _, selector := range contentSelectors(framework) {
		region := doc.Find(selector).First()
		if region.Length() == 0 {
			continue
		}
		for _, chrome := range chromeSelectors {
			region.Find(chrome).Remove()
		}
		resolveLinks(region, pageURL)
		fragment, err := goquery.OuterHtml(region)
		if err != nil {
			continue
		}
		markdown, err := e.converter.ConvertString(fragment)
		if err != nil {
			continue
		}
		if strings.TrimSpace(markdown) != "" {
			return markdown
		}
	}
	return ""
}

// resolveLinks rewrites relative href and src attributes in the region
// to absolute URLs against the page URL. Done before conversion so the
// cached markdown stays navigable outside the origin site.
func resolveLinks(region *goquery.Selection, pageURL string) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return
	}
	for _, attr := range []string{"href", "src"} {
		region.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(attr)
			ref, err := url.Parse(raw)
			if err != nil || ref.IsAbs() || strings.HasPrefix(raw, "#") {
				return
			}
			s.SetAttr(attr, base.ResolveReference(ref).String())
		})
	}
}

// readabilityFallback extracts with go-shiori's readability port and
// converts the surviving HTML. ok is false when readability found
// nothing either.
func (e *HTMLExtractor) readabilityFallback(body []byte, pageURL string) (markdown, title string, ok bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = nil
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", "", false
	}
	converted, err := e.converter.ConvertString(article.Content)
	if err != nil || strings.TrimSpace(converted) == "" {
		return "", "", false
	}
	return converted, strings.TrimSpace(article.Title), true
}

func metaDescription(doc *goquery.Document) string {
	if v, exists := doc.Find(`meta[name="description"]`).Attr("content"); exists {
		return strings.TrimSpace(v)
	}
	if v, exists := doc.Find(`meta[property="og:description"]`).Attr("content"); exists {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstHeading(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, found := strings.CutPrefix(trimmed, "# "); found {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

func tidyMarkdown(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	markdown = strings.Join(lines, "\n")
	markdown = excessiveBlankLines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

func runeCount(s string) int {
	return len([]rune(strings.TrimSpace(s)))
}
