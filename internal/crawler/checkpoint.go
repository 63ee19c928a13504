package crawler

import (
	"log/slog"
	"time"

	"github.com/docdex/docdex/internal/cache"
	"github.com/docdex/docdex/internal/model"
)

// checkpointManager serializes checkpoint updates for one run and
// decides when a snapshot is worth writing. All methods are nil-safe
// so a run with checkpointing disabled can call them unconditionally.
//
// Callers hold the crawler's result mutex around every method, so the
// manager itself needs no locking.
type checkpointManager struct {
	store      *cache.Store
	name       string
	version    string
	checkpoint *model.Checkpoint
	interval   int
	logger     *slog.Logger
	now        func() time.Time

	sinceLastSave int
}

func newCheckpointManager(store *cache.Store, name, version string, cp *model.Checkpoint, interval int, logger *slog.Logger, now func() time.Time) *checkpointManager {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	if now == nil {
		now = time.Now
	}
	return &checkpointManager{
		store:      store,
		name:       name,
		version:    version,
		checkpoint: cp,
		interval:   interval,
		logger:     logger,
		now:        now,
	}
}

func (m *checkpointManager) markCompleted(url string) {
	if m == nil {
		return
	}
	m.checkpoint.MarkCompleted(model.NormalizeURL(url))
	m.sinceLastSave++
	m.save(false)
}

func (m *checkpointManager) markFailed(url string) {
	if m == nil {
		return
	}
	m.checkpoint.MarkFailed(model.NormalizeURL(url))
	m.sinceLastSave++
	m.save(false)
}

func (m *checkpointManager) noteRateLimit() {
	if m == nil {
		return
	}
	m.checkpoint.RateLimitState = "observed"
}

// save writes a snapshot when forced or when the interval has been
// reached. Write failures are logged and swallowed: losing a
// checkpoint costs a future resume, failing the crawl over it would
// cost the crawl.
func (m *checkpointManager) save(force bool) {
	if m == nil {
		return
	}
	if !force && m.sinceLastSave < m.interval {
		return
	}

	m.checkpoint.LastSavedAt = m.now().UTC()
	if err := m.store.SaveCheckpoint(m.name, m.version, m.checkpoint); err != nil {
		m.logger.Warn("checkpoint save failed", slog.String("error", err.Error()))
		return
	}
	m.sinceLastSave = 0
}

// finish removes the checkpoint after a run that drained its queue.
// A completed run has nothing to resume, whatever the mix of
// successes and failures.
func (m *checkpointManager) finish() {
	if m == nil {
		return
	}
	if err := m.store.RemoveCheckpoint(m.name, m.version); err != nil {
		m.logger.Warn("checkpoint removal failed", slog.String("error", err.Error()))
	}
}
