package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adrg/xdg"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/config"
	"github.com/docdex/docdex/internal/log"
	"github.com/docdex/docdex/internal/model"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in          string
		wantName    string
		wantVersion string
	}{
		{in: "fastapi", wantName: "fastapi", wantVersion: "latest"},
		{in: "fastapi@0.115", wantName: "fastapi", wantVersion: "0.115"},
		{in: "example.com@2024-06", wantName: "example.com", wantVersion: "2024-06"},
		{in: "@weird", wantName: "@weird", wantVersion: "latest"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			name, version := parseTarget(tt.in)
			if name != tt.wantName || version != tt.wantVersion {
				t.Errorf("parseTarget(%q) = (%q, %q), want (%q, %q)",
					tt.in, name, version, tt.wantName, tt.wantVersion)
			}
		})
	}
}

func TestNewSyncCmd(t *testing.T) {
	t.Parallel()

	cmd := NewSyncCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sync <name[@version]>" {
			t.Errorf("expected use 'sync <name[@version]>', got %q", cmd.Use)
		}
	})

	t.Run("has expected flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"cache-dir", "max-pages", "timeout", "crawl-delay",
			"concurrency", "max-retries", "robots", "no-checkpoint",
			"json", "markdown", "output",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q", name)
			}
		}
	})
}

func TestRunSyncNotCached(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Name = "ghost"
	cfg.CacheDir = t.TempDir()

	logger := log.New(os.Stderr, false)
	err := runSync(context.Background(), cfg, logger)
	if err == nil {
		t.Fatal("expected error for uncached target")
	}
	if !strings.Contains(err.Error(), "not cached") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestRunSyncRefetchesChangedPages drives a full sync against a local
// site: one cached page modified, one added, one removed from the
// site. Only the changed pages are refetched and the manifest reflects
// the new page set.
func TestRunSyncRefetchesChangedPages(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	xdg.Reload()

	var mu sync.Mutex
	var fetched []string
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/docs/intro</loc><lastmod>2026-08-20</lastmod></url>
  <url><loc>%s/docs/new-page</loc></url>
</urlset>`, host, host)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "llms") {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		fetched = append(fetched, r.URL.Path)
		mu.Unlock()
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body><main><h1>%s</h1><p>%s</p></main></body></html>",
			r.URL.Path, r.URL.Path, strings.Repeat("content ", 30))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cacheDir := t.TempDir()
	store := cache.New(cacheDir)

	old := &model.Manifest{Pages: []model.PageRecord{
		{URL: server.URL + "/docs/intro", Filename: "intro.md", SizeBytes: 10, LastModified: "2026-01-01"},
		{URL: server.URL + "/docs/stale", Filename: "stale.md", SizeBytes: 10},
	}}
	if err := store.WriteManifest("example", "latest", old); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteIndex(&cache.Index{
		Name: "example", Version: "latest",
		SourceURL: server.URL, SourceType: "sitemap",
		PageCount: 2,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.Name = "example"
	cfg.CacheDir = cacheDir
	cfg.CrawlDelay = 0
	cfg.RobotsMode = config.RobotsOff
	cfg.CheckpointEnabled = false
	cfg.ReportFile = filepath.Join(t.TempDir(), "report.txt")

	logger := log.New(os.Stderr, false)
	if err := runSync(context.Background(), cfg, logger); err != nil {
		t.Fatal(err)
	}

	for _, path := range fetched {
		if path == "/docs/stale" {
			t.Error("removed page should not be fetched")
		}
	}
	if len(fetched) != 2 {
		t.Errorf("expected 2 page fetches, got %d: %v", len(fetched), fetched)
	}

	manifest, err := store.ReadManifest("example", "latest")
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Pages) != 2 {
		t.Fatalf("expected 2 manifest pages, got %d", len(manifest.Pages))
	}
	for _, p := range manifest.Pages {
		if strings.HasSuffix(p.URL, "/docs/stale") {
			t.Errorf("removed page still in manifest: %q", p.URL)
		}
	}

	report, err := os.ReadFile(cfg.ReportFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(report), "Operation:  sync") {
		t.Errorf("expected sync report, got %q", string(report))
	}

	idx, err := store.ReadIndex("example", "latest")
	if err != nil {
		t.Fatal(err)
	}
	if idx.PageCount != 2 {
		t.Errorf("expected index page count 2, got %d", idx.PageCount)
	}
}

// TestRunSyncKeepsRecordOnRefetchFailure syncs two modified pages where
// one refetch fails outright. The failed page must keep its cached
// manifest record instead of vanishing from the entry.
func TestRunSyncKeepsRecordOnRefetchFailure(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	xdg.Reload()

	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		host := "http://" + r.Host
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/docs/intro</loc><lastmod>2026-08-20</lastmod></url>
  <url><loc>%s/docs/guide</loc><lastmod>2026-08-21</lastmod></url>
</urlset>`, host, host)
	})
	mux.HandleFunc("/docs/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "llms") || r.URL.Path == "/docs/intro" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body><main><h1>%s</h1><p>%s</p></main></body></html>",
			r.URL.Path, r.URL.Path, strings.Repeat("content ", 30))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cacheDir := t.TempDir()
	store := cache.New(cacheDir)

	introURL := server.URL + "/docs/intro"
	old := &model.Manifest{Pages: []model.PageRecord{
		{URL: introURL, Filename: "intro.md", SizeBytes: 10, LastModified: "2026-01-01"},
		{URL: server.URL + "/docs/guide", Filename: "guide.md", SizeBytes: 10, LastModified: "2026-01-01"},
	}}
	if err := store.WriteManifest("example", "latest", old); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteIndex(&cache.Index{
		Name: "example", Version: "latest",
		SourceURL: server.URL, SourceType: "sitemap",
		PageCount: 2,
	}); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.Name = "example"
	cfg.CacheDir = cacheDir
	cfg.CrawlDelay = 0
	cfg.RobotsMode = config.RobotsOff
	cfg.CheckpointEnabled = false
	cfg.ReportFile = filepath.Join(t.TempDir(), "report.txt")

	logger := log.New(os.Stderr, false)
	if err := runSync(context.Background(), cfg, logger); err != nil {
		t.Fatal(err)
	}

	manifest, err := store.ReadManifest("example", "latest")
	if err != nil {
		t.Fatal(err)
	}
	if len(manifest.Pages) != 2 {
		t.Fatalf("expected 2 manifest pages, got %d", len(manifest.Pages))
	}
	rec, ok := manifest.ByURL()[model.NormalizeURL(introURL)]
	if !ok {
		t.Fatalf("failed refetch dropped the cached record: %+v", manifest.Pages)
	}
	if rec.Filename != "intro.md" || rec.LastModified != "2026-01-01" {
		t.Errorf("cached record altered: %+v", rec)
	}
}
