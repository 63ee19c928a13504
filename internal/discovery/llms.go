package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/docdex/docdex/internal/model"
)

// llms.txt size bounds. Files outside this range are assumed to be
// error pages or binary blobs served under the probed path.
const (
	minLLMSSize = 500
	maxLLMSSize = 50 * 1024 * 1024
)

// llmsProbePaths are tried in order against the site origin. The
// -full variant is preferred because it links every page rather than
// a curated subset.
var llmsProbePaths = []string{
	"/llms-full.txt",
	"/llms.txt",
	"/docs/llms-full.txt",
	"/docs/llms.txt",
}

var llmsURLPattern = regexp.MustCompile(`https?://[^\s\)\]>"'` + "`" + `]+`)

// notFoundPhrases mark soft 404s: servers that answer 200 with an
// error page for unknown paths.
var notFoundPhrases = []string{"404", "not found", "page does not exist"}

// LLMSStrategy probes the llms.txt convention, a plain-text index of
// documentation pages published at a well-known path.
type LLMSStrategy struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewLLMSStrategy returns the llms.txt probing strategy.
func NewLLMSStrategy(client *http.Client, userAgent string, logger *slog.Logger) *LLMSStrategy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LLMSStrategy{client: client, userAgent: userAgent, logger: logger}
}

// Name implements Strategy.
func (s *LLMSStrategy) Name() string { return "llms" }

// Discover probes the known llms.txt locations and extracts page URLs
// from the first valid file.
func (s *LLMSStrategy) Discover(ctx context.Context, target Target) ([]model.PageDescriptor, error) {
	base, err := url.Parse(target.BaseURL)
	if err != nil {
		return nil, err
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}

	for _, probe := range llmsProbePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		probeURL := origin.JoinPath(probe).String()
		body, status, header, err := fetch(ctx, s.client, probeURL, s.userAgent)
		if err != nil {
			s.logger.Debug("llms probe failed", slog.String("url", probeURL), slog.String("error", err.Error()))
			continue
		}
		if status != http.StatusOK {
			continue
		}
		if !validLLMSFile(body, header.Get("Content-Type")) {
			s.logger.Debug("llms probe rejected", slog.String("url", probeURL))
			continue
		}

		descriptors := extractLLMSPages(base, body)
		if len(descriptors) > 0 {
			s.logger.Info("llms index found",
				slog.String("url", probeURL),
				slog.Int("pages", len(descriptors)))
			return descriptors, nil
		}
	}
	return nil, nil
}

// validLLMSFile filters out responses that are not actually an
// llms.txt index: HTML error pages, soft 404s, tiny placeholders, and
// oversized blobs.
func validLLMSFile(body []byte, contentType string) bool {
	if len(body) < minLLMSSize || len(body) > maxLLMSSize {
		return false
	}
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return false
	}

	head := strings.ToLower(string(body[:min(len(body), 512)]))
	trimmed := strings.TrimSpace(head)
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		return false
	}
	for _, phrase := range notFoundPhrases {
		if strings.Contains(trimmed, phrase) && !strings.Contains(trimmed, "http") {
			return false
		}
	}

	// A real index carries markdown structure or at least links.
	return strings.Contains(string(body), "# ") ||
		strings.Contains(string(body), "](") ||
		llmsURLPattern.Match(body)
}

// extractLLMSPages pulls documentation page URLs out of an llms.txt
// body, keeping only same-origin pages and preserving file order.
func extractLLMSPages(base *url.URL, body []byte) []model.PageDescriptor {
	matches := llmsURLPattern.FindAllString(string(body), -1)
	descriptors := make([]model.PageDescriptor, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;")
		if !sameOrigin(base, m) || !docsPage(base, m) {
			continue
		}
		descriptors = append(descriptors, model.PageDescriptor{URL: m})
	}
	return descriptors
}
