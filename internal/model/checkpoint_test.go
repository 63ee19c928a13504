package model

import (
	"testing"
	"time"
)

// TestCheckpointLifecycle tests pending/completed/failed bookkeeping.
func TestCheckpointLifecycle(t *testing.T) {
	t.Parallel()

	descriptors := []PageDescriptor{
		{URL: "https://ex.com/a"},
		{URL: "https://ex.com/b"},
		{URL: "https://ex.com/c"},
	}
	cp := NewCheckpoint("fetch", "lib@1.0", descriptors)

	if cp.TotalPages != 3 {
		t.Fatalf("expected 3 total pages, got %d", cp.TotalPages)
	}
	if len(cp.Pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(cp.Pending))
	}
	if !cp.Valid() {
		t.Fatal("fresh checkpoint should be valid")
	}

	cp.MarkCompleted("https://ex.com/a")
	cp.MarkFailed("https://ex.com/b")

	if cp.CompletedPages != 1 || len(cp.Completed) != 1 {
		t.Errorf("expected 1 completed, got counter=%d len=%d", cp.CompletedPages, len(cp.Completed))
	}
	if len(cp.Failed) != 1 {
		t.Errorf("expected 1 failed, got %d", len(cp.Failed))
	}
	if len(cp.Pending) != 1 || cp.Pending[0] != "https://ex.com/c" {
		t.Errorf("pending should hold only c, got %v", cp.Pending)
	}

	// Pending must stay disjoint from completed and failed.
	for _, p := range cp.Pending {
		if cp.CompletedSet()[p] {
			t.Errorf("pending URL %q also completed", p)
		}
		for _, f := range cp.Failed {
			if p == f {
				t.Errorf("pending URL %q also failed", p)
			}
		}
	}
}

// TestCheckpointNormalizesURLs tests that seeding and marking agree on
// URL spelling, so a page completed under its normalized form leaves
// pending regardless of how the descriptor spelled it.
func TestCheckpointNormalizesURLs(t *testing.T) {
	t.Parallel()

	descriptors := []PageDescriptor{
		{URL: "https://Ex.com/guide/"},
		{URL: "https://ex.com/api#section"},
	}
	cp := NewCheckpoint("fetch", "lib@1.0", descriptors)

	cp.MarkCompleted(NormalizeURL("https://Ex.com/guide/"))
	cp.MarkFailed("https://ex.com/api#section")

	if len(cp.Pending) != 0 {
		t.Errorf("all pages marked, pending should be empty, got %v", cp.Pending)
	}
	if len(cp.Completed) != 1 || cp.Completed[0] != "https://ex.com/guide" {
		t.Errorf("completed should hold the normalized URL, got %v", cp.Completed)
	}
	if len(cp.Failed) != 1 || cp.Failed[0] != "https://ex.com/api" {
		t.Errorf("failed should hold the normalized URL, got %v", cp.Failed)
	}
}

// TestCheckpointStaleness tests the 7-day staleness boundary.
func TestCheckpointStaleness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("8 days old is stale", func(t *testing.T) {
		t.Parallel()
		cp := &Checkpoint{LastSavedAt: now.Add(-8 * 24 * time.Hour)}
		if !cp.IsStale(now, 0) {
			t.Error("checkpoint 8 days old should be stale")
		}
	})

	t.Run("6 days old is honored", func(t *testing.T) {
		t.Parallel()
		cp := &Checkpoint{LastSavedAt: now.Add(-6 * 24 * time.Hour)}
		if cp.IsStale(now, 0) {
			t.Error("checkpoint 6 days old should not be stale")
		}
	})
}

// TestCheckpointValid tests schema and counter validation.
func TestCheckpointValid(t *testing.T) {
	t.Parallel()

	t.Run("schema mismatch is invalid", func(t *testing.T) {
		t.Parallel()
		cp := &Checkpoint{SchemaVersion: CheckpointSchemaVersion + 1}
		if cp.Valid() {
			t.Error("wrong schema version should be invalid")
		}
	})

	t.Run("counter mismatch is invalid", func(t *testing.T) {
		t.Parallel()
		cp := &Checkpoint{
			SchemaVersion:  CheckpointSchemaVersion,
			CompletedPages: 2,
			Completed:      []string{"https://ex.com/a"},
		}
		if cp.Valid() {
			t.Error("counter/slice disagreement should be invalid")
		}
	})
}
