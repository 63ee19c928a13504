package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/docdex/docdex/internal/model"
)

// readmeFilenames are the conventional names tried on the raw host,
// in preference order.
var readmeFilenames = []string{"README.md", "readme.md", "Readme.md", "docs/README.md"}

// readmeBranches are the default branch names tried for each file.
var readmeBranches = []string{"main", "master"}

// ReadmeStrategy is the last-resort fallback: when a site exposes no
// page source at all, a repository README still gives the cache one
// useful page.
type ReadmeStrategy struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	// apiHost and rawHost are overridable for tests.
	apiHost string
	rawHost string
}

// NewReadmeStrategy returns the README fallback strategy.
func NewReadmeStrategy(client *http.Client, userAgent string, logger *slog.Logger) *ReadmeStrategy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReadmeStrategy{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		apiHost:   "https://api.github.com",
		rawHost:   "https://raw.githubusercontent.com",
	}
}

// Name implements Strategy.
func (s *ReadmeStrategy) Name() string { return "readme" }

// Discover resolves the repository README for the target. Targets
// without a recognizable GitHub repository URL yield nothing.
func (s *ReadmeStrategy) Discover(ctx context.Context, target Target) ([]model.PageDescriptor, error) {
	owner, repo, ok := parseGitHubRepo(target.RepoURL)
	if !ok {
		return nil, nil
	}

	// The API endpoint resolves the default branch and README name in
	// one request; the raw-host probes are a fallback for rate-limited
	// or offline API access.
	candidates := []string{
		fmt.Sprintf("%s/repos/%s/%s/readme", s.apiHost, owner, repo),
	}
	for _, branch := range readmeBranches {
		for _, name := range readmeFilenames {
			candidates = append(candidates,
				fmt.Sprintf("%s/%s/%s/%s/%s", s.rawHost, owner, repo, branch, name))
		}
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.probe(ctx, candidate) {
			s.logger.Info("readme fallback resolved", slog.String("url", candidate))
			return []model.PageDescriptor{{URL: candidate}}, nil
		}
	}
	return nil, nil
}

// probe checks that a candidate URL serves a non-empty document.
func (s *ReadmeStrategy) probe(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/vnd.github.raw+json, text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK && resp.ContentLength != 0
}

// parseGitHubRepo extracts owner and repository from a GitHub URL.
func parseGitHubRepo(repoURL string) (owner, repo string, ok bool) {
	if repoURL == "" {
		return "", "", false
	}
	u, err := url.Parse(repoURL)
	if err != nil || !strings.EqualFold(u.Host, "github.com") {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
