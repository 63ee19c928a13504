package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Documentation framework names reported by DetectFramework. The
// crawler uses them to pick navigation selectors during link
// discovery; the extractor uses them to locate the content region.
const (
	FrameworkDocusaurus = "docusaurus"
	FrameworkVitePress  = "vitepress"
	FrameworkMkDocs     = "mkdocs"
	FrameworkSphinx     = "sphinx"
	FrameworkGitBook    = "gitbook"
	FrameworkGeneric    = "generic"
)

// DetectFramework inspects a parsed document for fingerprints of the
// common documentation generators. Detection is best effort; pages
// that match nothing are classified as generic and handled with
// conservative selectors.
func DetectFramework(doc *goquery.Document) string {
	generator, _ := doc.Find(`meta[name="generator"]`).Attr("content")
	generator = strings.ToLower(generator)

	switch {
	case strings.Contains(generator, "docusaurus"),
		doc.Find("#__docusaurus").Length() > 0:
		return FrameworkDocusaurus
	case doc.Find("#VPContent").Length() > 0,
		doc.Find(".vp-doc").Length() > 0:
		return FrameworkVitePress
	case strings.Contains(generator, "mkdocs"),
		doc.Find(".md-container").Length() > 0:
		return FrameworkMkDocs
	case strings.Contains(generator, "sphinx"),
		doc.Find(".sphinxsidebar").Length() > 0,
		doc.Find(".rst-content").Length() > 0:
		return FrameworkSphinx
	case strings.Contains(generator, "gitbook"),
		doc.Find(".gitbook-root").Length() > 0:
		return FrameworkGitBook
	default:
		return FrameworkGeneric
	}
}

// contentSelectors returns the CSS selectors tried in order when
// locating the main content region for a framework. The first
// selector with a non-empty match wins.
func contentSelectors(framework string) []string {
	switch framework {
	case FrameworkDocusaurus:
		return []string{".theme-doc-markdown", "article", "main"}
	case FrameworkVitePress:
		return []string{".vp-doc", "#VPContent main", "main"}
	case FrameworkMkDocs:
		return []string{".md-content article", ".md-content", "main"}
	case FrameworkSphinx:
		return []string{`div[role="main"]`, ".rst-content", ".body", "main"}
	case FrameworkGitBook:
		return []string{`main [data-testid="page.contentEditor"]`, "main", "article"}
	default:
		return []string{"main", "article", `div[role="main"]`, "body"}
	}
}
