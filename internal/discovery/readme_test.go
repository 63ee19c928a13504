package discovery

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestReadmeStrategyRawFallback(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := newTestServer(t, mux)
	// API endpoint is down; the conventional raw path works.
	mux.HandleFunc("/raw/acme/widget/main/README.md", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "# Widget\n\nA widget library.\n")
	})

	s := NewReadmeStrategy(srv.Client(), "docdex-test", nil)
	s.apiHost = srv.URL + "/api"
	s.rawHost = srv.URL + "/raw"

	got, err := s.Discover(context.Background(), Target{RepoURL: "https://github.com/acme/widget"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(descriptors) = %d, want 1: %+v", len(got), got)
	}
	want := srv.URL + "/raw/acme/widget/main/README.md"
	if got[0].URL != want {
		t.Errorf("URL = %q, want %q", got[0].URL, want)
	}
}

func TestReadmeStrategyAPIPreferred(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := newTestServer(t, mux)
	mux.HandleFunc("/api/repos/acme/widget/readme", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "# Widget\n")
	})
	mux.HandleFunc("/raw/acme/widget/main/README.md", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "# Widget\n")
	})

	s := NewReadmeStrategy(srv.Client(), "docdex-test", nil)
	s.apiHost = srv.URL + "/api"
	s.rawHost = srv.URL + "/raw"

	got, err := s.Discover(context.Background(), Target{RepoURL: "https://github.com/acme/widget.git"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 1 || got[0].URL != srv.URL+"/api/repos/acme/widget/readme" {
		t.Errorf("descriptors = %+v, want the API endpoint", got)
	}
}

func TestReadmeStrategySkipsNonGitHub(t *testing.T) {
	t.Parallel()

	s := NewReadmeStrategy(http.DefaultClient, "docdex-test", nil)
	for _, repo := range []string{"", "https://gitlab.com/a/b", "not a url at all", "https://github.com/onlyowner"} {
		got, err := s.Discover(context.Background(), Target{RepoURL: repo})
		if err != nil {
			t.Fatalf("Discover(%q) error = %v", repo, err)
		}
		if len(got) != 0 {
			t.Errorf("Discover(%q) = %+v, want none", repo, got)
		}
	}
}

func TestParseGitHubRepo(t *testing.T) {
	t.Parallel()

	owner, repo, ok := parseGitHubRepo("https://github.com/acme/widget/tree/main/docs")
	if !ok || owner != "acme" || repo != "widget" {
		t.Errorf("parseGitHubRepo() = %q/%q/%v", owner, repo, ok)
	}
}
