package diff

import (
	"testing"

	"github.com/docdex/docdex/internal/model"
)

// TestDiffIdempotence tests that diffing a manifest against itself
// yields all-unchanged.
func TestDiffIdempotence(t *testing.T) {
	t.Parallel()

	old := &model.Manifest{Pages: []model.PageRecord{
		{URL: "https://ex.com/a", Title: "A", SizeBytes: 100, LastModified: "2026-01-01"},
		{URL: "https://ex.com/b", Title: "B", SizeBytes: 200},
		{URL: "https://ex.com/c", Title: "C"},
	}}

	fresh := make([]model.PageDescriptor, 0, len(old.Pages))
	for _, p := range old.Pages {
		fresh = append(fresh, model.PageDescriptor{URL: p.URL, LastModified: p.LastModified})
	}

	result := Diff(old, fresh)
	if result.Stats.Unchanged != 3 || result.Stats.Modified != 0 ||
		result.Stats.Added != 0 || result.Stats.Removed != 0 {
		t.Errorf("diff(M, M) should be all unchanged, got %+v", result.Stats)
	}
	if result.Stats.NeedsFetch != 0 {
		t.Errorf("NeedsFetch = %d, want 0", result.Stats.NeedsFetch)
	}
}

// TestDiffScenario tests the mixed modified/added/removed case:
// old {A(T1), B, C}, new {A(T2>T1), B, D}.
func TestDiffScenario(t *testing.T) {
	t.Parallel()

	old := &model.Manifest{Pages: []model.PageRecord{
		{URL: "https://ex.com/a", Title: "A", LastModified: "2026-01-01T00:00:00Z"},
		{URL: "https://ex.com/b", Title: "B"},
		{URL: "https://ex.com/c", Title: "C"},
	}}
	fresh := []model.PageDescriptor{
		{URL: "https://ex.com/a", LastModified: "2026-02-01T00:00:00Z"},
		{URL: "https://ex.com/b"},
		{URL: "https://ex.com/d"},
	}

	result := Diff(old, fresh)

	if len(result.Modified) != 1 || result.Modified[0].URL != "https://ex.com/a" {
		t.Errorf("Modified = %v, want [A]", result.Modified)
	}
	if len(result.Unchanged) != 1 || result.Unchanged[0].URL != "https://ex.com/b" {
		t.Errorf("Unchanged = %v, want [B]", result.Unchanged)
	}
	if len(result.Added) != 1 || result.Added[0].URL != "https://ex.com/d" {
		t.Errorf("Added = %v, want [D]", result.Added)
	}
	if len(result.Removed) != 1 || result.Removed[0].URL != "https://ex.com/c" {
		t.Errorf("Removed = %v, want [C]", result.Removed)
	}
	if result.Stats.NeedsFetch != 2 {
		t.Errorf("NeedsFetch = %d, want 2", result.Stats.NeedsFetch)
	}
}

// TestDiffURLNormalization tests that URL spelling variants diff to
// the same entity.
func TestDiffURLNormalization(t *testing.T) {
	t.Parallel()

	old := &model.Manifest{Pages: []model.PageRecord{
		{URL: "https://ex.com/a/", Title: "A"},
	}}
	fresh := []model.PageDescriptor{
		{URL: "https://ex.com/a#frag"},
	}

	result := Diff(old, fresh)
	if result.Stats.Added != 0 || result.Stats.Removed != 0 {
		t.Errorf("URL variants should match the same entity: %+v", result.Stats)
	}
	if result.Stats.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", result.Stats.Unchanged)
	}
}

// TestDiffTimestampHandling tests timestamp comparison edge cases.
func TestDiffTimestampHandling(t *testing.T) {
	t.Parallel()

	t.Run("older new timestamp is unchanged", func(t *testing.T) {
		t.Parallel()

		old := &model.Manifest{Pages: []model.PageRecord{
			{URL: "https://ex.com/a", LastModified: "2026-02-01"},
		}}
		fresh := []model.PageDescriptor{{URL: "https://ex.com/a", LastModified: "2026-01-01"}}

		if got := Diff(old, fresh); got.Stats.Modified != 0 {
			t.Errorf("older timestamp should not mark modified: %+v", got.Stats)
		}
	})

	t.Run("unparseable timestamp falls back to unchanged", func(t *testing.T) {
		t.Parallel()

		old := &model.Manifest{Pages: []model.PageRecord{
			{URL: "https://ex.com/a", LastModified: "2026-01-01"},
		}}
		fresh := []model.PageDescriptor{{URL: "https://ex.com/a", LastModified: "last tuesday"}}

		if got := Diff(old, fresh); got.Stats.Modified != 0 {
			t.Errorf("garbage timestamp should be treated as absent: %+v", got.Stats)
		}
	})

	t.Run("mixed date layouts still compare", func(t *testing.T) {
		t.Parallel()

		old := &model.Manifest{Pages: []model.PageRecord{
			{URL: "https://ex.com/a", LastModified: "2026-01-15"},
		}}
		fresh := []model.PageDescriptor{{URL: "https://ex.com/a", LastModified: "2026-03-01T09:30:00+02:00"}}

		if got := Diff(old, fresh); got.Stats.Modified != 1 {
			t.Errorf("newer RFC3339 vs bare date should be modified: %+v", got.Stats)
		}
	})
}

// TestDiffEmptyOldManifest tests the first-sync case.
func TestDiffEmptyOldManifest(t *testing.T) {
	t.Parallel()

	fresh := []model.PageDescriptor{
		{URL: "https://ex.com/a"},
		{URL: "https://ex.com/b"},
	}

	result := Diff(nil, fresh)
	if result.Stats.Added != 2 || result.Stats.NeedsFetch != 2 {
		t.Errorf("all pages should be added on first sync: %+v", result.Stats)
	}
}

// TestDiffDuplicateDescriptors tests that duplicate discovery results
// are collapsed.
func TestDiffDuplicateDescriptors(t *testing.T) {
	t.Parallel()

	fresh := []model.PageDescriptor{
		{URL: "https://ex.com/a"},
		{URL: "https://ex.com/a/"},
	}

	result := Diff(nil, fresh)
	if result.Stats.Added != 1 {
		t.Errorf("duplicates should collapse, got %d added", result.Stats.Added)
	}
}
