package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/model"
)

func TestRunStatusCmd(t *testing.T) {
	t.Parallel()

	t.Run("not cached", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewStatusCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"ghost", "--cache-dir", t.TempDir()})

		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "not cached") {
			t.Errorf("expected not-cached message, got %q", buf.String())
		}
	})

	t.Run("complete entry", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		store := cache.New(cacheDir)
		if err := store.WriteIndex(&cache.Index{
			Name: "example", Version: "latest",
			SourceURL: "https://docs.example.com", SourceType: "sitemap",
			PageCount: 0, FetchedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		cmd := NewStatusCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"example", "--cache-dir", cacheDir})

		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "complete") {
			t.Errorf("expected complete state, got %q", out)
		}
		if !strings.Contains(out, "https://docs.example.com") {
			t.Errorf("expected source URL, got %q", out)
		}
	})

	t.Run("interrupted entry", func(t *testing.T) {
		t.Parallel()

		cacheDir := t.TempDir()
		store := cache.New(cacheDir)
		cp := model.NewCheckpoint("fetch", "example@latest", []model.PageDescriptor{
			{URL: "https://docs.example.com/a"},
			{URL: "https://docs.example.com/b"},
		})
		cp.MarkCompleted("https://docs.example.com/a")
		if err := store.SaveCheckpoint("example", "latest", cp); err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		cmd := NewStatusCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"example", "--cache-dir", cacheDir})

		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "interrupted") {
			t.Errorf("expected interrupted state, got %q", out)
		}
		if !strings.Contains(out, "resume") {
			t.Errorf("expected resume hint, got %q", out)
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cmd := NewStatusCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"ghost@1.0", "--cache-dir", t.TempDir(), "--json"})

		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}

		var view statusView
		if err := json.Unmarshal(buf.Bytes(), &view); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if view.Cached {
			t.Error("expected cached=false for missing entry")
		}
		if view.Name != "ghost" || view.Version != "1.0" {
			t.Errorf("unexpected target %s@%s", view.Name, view.Version)
		}
	})
}
