package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docdex/docdex/internal/model"
)

func TestStoreIndexRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	idx := &Index{
		Name:       "hono",
		Version:    "4.6.0",
		SourceURL:  "https://hono.dev/docs",
		SourceType: "sitemap",
		FetchedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PageCount:  42,
		TotalBytes: 1 << 20,
		Artifacts:  Artifacts{Sitemap: true, Pages: true},
	}
	if err := s.WriteIndex(idx); err != nil {
		t.Fatalf("WriteIndex() error = %v", err)
	}

	got, err := s.ReadIndex("hono", "4.6.0")
	if err != nil {
		t.Fatalf("ReadIndex() error = %v", err)
	}
	if got.SourceType != "sitemap" || got.PageCount != 42 || !got.Artifacts.Pages {
		t.Errorf("ReadIndex() = %+v", got)
	}
}

func TestStoreReadIndexNotCached(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	if _, err := s.ReadIndex("missing", "1.0.0"); !errors.Is(err, ErrNotCached) {
		t.Errorf("ReadIndex() error = %v, want ErrNotCached", err)
	}
	if _, err := s.ReadManifest("missing", "1.0.0"); !errors.Is(err, ErrNotCached) {
		t.Errorf("ReadManifest() error = %v, want ErrNotCached", err)
	}
}

func TestStorePageRoundTrip(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	page := &Page{
		URL:         "https://hono.dev/docs/getting-started",
		Title:       "Getting Started",
		ExtractedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Markdown:    "# Getting Started\n\nInstall the package.",
	}

	filename, size, err := s.WritePage("hono", "4.6.0", page)
	if err != nil {
		t.Fatalf("WritePage() error = %v", err)
	}
	if size != int64(len(page.Markdown)) {
		t.Errorf("size = %d, want %d", size, len(page.Markdown))
	}
	if !strings.HasPrefix(filename, "docs-getting-started-") || !strings.HasSuffix(filename, ".md") {
		t.Errorf("filename = %q", filename)
	}

	got, err := s.ReadPage("hono", "4.6.0", filename)
	if err != nil {
		t.Fatalf("ReadPage() error = %v", err)
	}
	if got.URL != page.URL || got.Title != page.Title || got.Markdown != page.Markdown {
		t.Errorf("ReadPage() = %+v", got)
	}

	n, err := s.CountPages("hono", "4.6.0")
	if err != nil {
		t.Fatalf("CountPages() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountPages() = %d, want 1", n)
	}
}

func TestStoreCheckpointLifecycle(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	descriptors := []model.PageDescriptor{
		{URL: "https://hono.dev/docs/a"},
		{URL: "https://hono.dev/docs/b"},
	}
	cp := model.NewCheckpoint("fetch", "hono@4.6.0", descriptors)
	cp.MarkCompleted("https://hono.dev/docs/a")

	if err := s.SaveCheckpoint("hono", "4.6.0", cp); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}
	if !s.HasCheckpoint("hono", "4.6.0") {
		t.Error("HasCheckpoint() = false after save")
	}

	got, err := s.LoadCheckpoint("hono", "4.6.0")
	if err != nil {
		t.Fatalf("LoadCheckpoint() error = %v", err)
	}
	if got.CompletedPages != 1 || len(got.Pending) != 1 {
		t.Errorf("LoadCheckpoint() = %+v", got)
	}

	if err := s.RemoveCheckpoint("hono", "4.6.0"); err != nil {
		t.Fatalf("RemoveCheckpoint() error = %v", err)
	}
	if _, err := s.LoadCheckpoint("hono", "4.6.0"); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("LoadCheckpoint() after remove error = %v, want ErrNoCheckpoint", err)
	}
	// Removing twice must stay silent.
	if err := s.RemoveCheckpoint("hono", "4.6.0"); err != nil {
		t.Errorf("RemoveCheckpoint() second call error = %v", err)
	}
}

func TestStoreLoadCheckpointRejectsBadFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "corrupted json", content: "{not json"},
		{name: "schema mismatch", content: `{"schemaVersion": 99, "operation": "fetch"}`},
		{
			name: "inconsistent counts",
			content: `{"schemaVersion": 1, "operation": "fetch", "targetId": "x@1",
				"completedPages": 5, "completed": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := New(t.TempDir())
			path := s.CheckpointPath("x", "1")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := s.LoadCheckpoint("x", "1"); !errors.Is(err, ErrNoCheckpoint) {
				t.Errorf("LoadCheckpoint() error = %v, want ErrNoCheckpoint", err)
			}
		})
	}
}

func TestStoreEntries(t *testing.T) {
	t.Parallel()

	s := New(t.TempDir())
	for _, target := range []struct{ name, version string }{
		{"zod", "3.23.0"},
		{"hono", "4.6.0"},
		{"hono", "4.7.0"},
	} {
		idx := &Index{Name: target.name, Version: target.version, FetchedAt: time.Now()}
		if err := s.WriteIndex(idx); err != nil {
			t.Fatalf("WriteIndex(%s@%s) error = %v", target.name, target.version, err)
		}
	}
	// A version dir without index.json must not appear.
	if err := os.MkdirAll(s.Dir("broken", "0.1.0"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name+"@"+e.Version)
	}
	want := []string{"hono@4.6.0", "hono@4.7.0", "zod@3.23.0"}
	if len(got) != len(want) {
		t.Fatalf("Entries() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStoreEntriesMissingRoot(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "never-created"))
	entries, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Entries() = %v, want empty", entries)
	}
}
