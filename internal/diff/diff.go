package diff

import (
	"time"

	"github.com/araddon/dateparse"

	"github.com/docdex/docdex/internal/model"
)

// Diff classifies freshly discovered descriptors against the cached
// manifest. Every page present in the new set is unchanged, modified,
// or added; cached pages missing from the new set are removed.
//
// Descriptors carry only sitemap hints, so the usable change signal is
// the modification timestamp. Pages without comparable signals fall to
// unchanged, the conservative default.
func Diff(old *model.Manifest, fresh []model.PageDescriptor) *model.DiffResult {
	oldByURL := map[string]model.PageRecord{}
	if old != nil {
		oldByURL = old.ByURL()
	}

	result := &model.DiffResult{
		Unchanged: []model.PageRecord{},
		Modified:  []model.PageDescriptor{},
		Added:     []model.PageDescriptor{},
		Removed:   []model.PageRecord{},
	}

	seen := make(map[string]bool, len(fresh))
	for _, d := range fresh {
		key := model.NormalizeURL(d.URL)
		if seen[key] {
			continue // duplicate descriptor in this discovery run
		}
		seen[key] = true

		oldRec, exists := oldByURL[key]
		if !exists {
			result.Added = append(result.Added, d)
			continue
		}

		newSide := model.PageRecord{
			URL:             d.URL,
			LastModified:    d.LastModified,
			ChangeFrequency: d.ChangeFrequency,
			Priority:        d.Priority,
		}
		if pageChanged(oldRec, newSide) {
			result.Modified = append(result.Modified, d)
		} else {
			result.Unchanged = append(result.Unchanged, oldRec)
		}
	}

	if old != nil {
		for _, rec := range old.Pages {
			if !seen[model.NormalizeURL(rec.URL)] {
				result.Removed = append(result.Removed, rec)
			}
		}
	}

	result.Stats = model.DiffStats{
		Unchanged:  len(result.Unchanged),
		Modified:   len(result.Modified),
		Added:      len(result.Added),
		Removed:    len(result.Removed),
		NeedsFetch: len(result.Modified) + len(result.Added),
	}
	return result
}

// pageChanged applies the change signals in priority order:
//
//  1. both sides carry a parseable modification timestamp: the page
//     changed when the new one is strictly newer
//  2. both sides carry a size: changed when sizes differ
//  3. both sides carry a title: changed when titles differ
//  4. no comparable signal: unchanged
//
// Stale or unparseable timestamps are treated as absent so a sitemap
// with garbage lastmod values degrades to the next signal instead of
// forcing refetches.
func pageChanged(oldRec, newRec model.PageRecord) bool {
	oldT, oldOK := parseLastModified(oldRec.LastModified)
	newT, newOK := parseLastModified(newRec.LastModified)
	if oldOK && newOK {
		return newT.After(oldT)
	}

	if oldRec.SizeBytes > 0 && newRec.SizeBytes > 0 {
		return oldRec.SizeBytes != newRec.SizeBytes
	}

	if oldRec.Title != "" && newRec.Title != "" {
		return oldRec.Title != newRec.Title
	}

	return false
}

// parseLastModified parses a lastmod value leniently. Sitemaps in the
// wild carry everything from bare dates to RFC3339 with offsets, so we
// let dateparse guess the layout.
func parseLastModified(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
