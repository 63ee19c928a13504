package crawler

import (
	"errors"
	"fmt"
	"time"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/model"
)

// InterruptionReport is the advisory verdict on whether a cache entry
// was left behind by an interrupted run.
type InterruptionReport struct {
	// Interrupted is the verdict.
	Interrupted bool

	// Reason describes the evidence in one line. Empty when not
	// interrupted.
	Reason string

	// Checkpoint is the resumable progress snapshot, when one exists
	// and is valid. It is the authoritative signal; the other
	// heuristics only run without one.
	Checkpoint *model.Checkpoint
}

// DetectInterruption inspects a cache entry for traces of an
// interrupted run. The heuristics run in order of reliability: a
// fresh checkpoint, a checkpoint file too broken to load, page files
// without an index, and finally an index whose page count disagrees
// with the files on disk. A checkpoint older than maxAge is not
// resumable, so it falls through to the directory heuristics just
// like a missing one. Non-positive maxAge uses the model default.
func DetectInterruption(store *cache.Store, name, version string, maxAge time.Duration) (*InterruptionReport, error) {
	cp, err := store.LoadCheckpoint(name, version)
	if err == nil {
		if !cp.IsStale(time.Now(), maxAge) {
			return &InterruptionReport{
				Interrupted: true,
				Reason: fmt.Sprintf("checkpoint present: %d of %d pages completed",
					cp.CompletedPages, cp.TotalPages),
				Checkpoint: cp,
			}, nil
		}
	} else if !errors.Is(err, cache.ErrNoCheckpoint) {
		return nil, err
	} else if store.HasCheckpoint(name, version) {
		// The file exists but failed validation above.
		return &InterruptionReport{
			Interrupted: true,
			Reason:      "checkpoint file present but not loadable",
		}, nil
	}

	pageCount, err := store.CountPages(name, version)
	if err != nil {
		return nil, err
	}

	idx, err := store.ReadIndex(name, version)
	if err != nil {
		if !errors.Is(err, cache.ErrNotCached) {
			return nil, err
		}
		if pageCount > 0 {
			return &InterruptionReport{
				Interrupted: true,
				Reason:      fmt.Sprintf("%d page files exist but no index was written", pageCount),
			}, nil
		}
		return &InterruptionReport{}, nil
	}

	if idx.PageCount != pageCount {
		return &InterruptionReport{
			Interrupted: true,
			Reason: fmt.Sprintf("index records %d pages but %d files exist on disk",
				idx.PageCount, pageCount),
		}, nil
	}
	return &InterruptionReport{}, nil
}
