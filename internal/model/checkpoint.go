package model

import (
	"time"
)

// CheckpointSchemaVersion is the current checkpoint file schema.
// A checkpoint whose SchemaVersion differs is discarded rather than
// migrated; losing partial progress is cheaper than misreading it.
const CheckpointSchemaVersion = 1

// DefaultCheckpointMaxAge is how long a checkpoint stays resumable.
// A checkpoint older than this is treated as absent: the site has
// likely changed enough that resuming would produce a skewed cache.
const DefaultCheckpointMaxAge = 7 * 24 * time.Hour

// Checkpoint is a durable snapshot of crawl progress, persisted as
// .checkpoint.json inside a cache entry. It lets a multi-hundred-page
// crawl resume after a crash or cancellation instead of starting over.
type Checkpoint struct {
	// SchemaVersion must equal CheckpointSchemaVersion to be honored.
	SchemaVersion int `json:"schemaVersion"`

	// Operation names the run that wrote the checkpoint: "fetch" for a
	// full ingest, "sync" for an incremental resync.
	Operation string `json:"operation"`

	// TargetID identifies the cache entry, as "<name>@<version>".
	TargetID string `json:"targetId"`

	// TotalPages is the descriptor count the run started with.
	TotalPages int `json:"totalPages"`

	// CompletedPages mirrors len(Completed). Kept explicit so a reader
	// can sanity-check the file without loading the slices.
	CompletedPages int `json:"completedPages"`

	// Completed lists normalized URLs whose PageRecord was fully written.
	Completed []string `json:"completed"`

	// Failed lists normalized URLs that exhausted their retries.
	Failed []string `json:"failed"`

	// Pending lists normalized URLs not yet attempted. Disjoint from
	// Completed and Failed.
	Pending []string `json:"pending"`

	// RateLimitState notes whether the run had seen rate limiting,
	// so a resume can start more gently. Empty when none was seen.
	RateLimitState string `json:"rateLimitState,omitempty"`

	// StartedAt is when the interrupted run began.
	StartedAt time.Time `json:"startedAt"`

	// LastSavedAt is when this snapshot was written. Staleness is
	// judged against this, not StartedAt.
	LastSavedAt time.Time `json:"lastSavedAt"`

	// Metadata carries small operation-specific values (source URL,
	// discovery source type) useful when reporting a resumable run.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewCheckpoint creates a checkpoint for a run over the given
// descriptors. URLs are stored normalized so that membership checks
// are insensitive to spelling variants (trailing slash, fragment).
func NewCheckpoint(operation, targetID string, descriptors []PageDescriptor) *Checkpoint {
	pending := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		pending = append(pending, NormalizeURL(d.URL))
	}
	return &Checkpoint{
		SchemaVersion: CheckpointSchemaVersion,
		Operation:     operation,
		TargetID:      targetID,
		TotalPages:    len(descriptors),
		Completed:     []string{},
		Failed:        []string{},
		Pending:       pending,
		StartedAt:     time.Now().UTC(),
		LastSavedAt:   time.Now().UTC(),
	}
}

// MarkCompleted moves a URL from pending to completed.
func (c *Checkpoint) MarkCompleted(url string) {
	url = NormalizeURL(url)
	c.removePending(url)
	c.Completed = append(c.Completed, url)
	c.CompletedPages = len(c.Completed)
}

// MarkFailed moves a URL from pending to failed.
func (c *Checkpoint) MarkFailed(url string) {
	url = NormalizeURL(url)
	c.removePending(url)
	c.Failed = append(c.Failed, url)
}

func (c *Checkpoint) removePending(url string) {
	for i, p := range c.Pending {
		if p == url {
			c.Pending = append(c.Pending[:i], c.Pending[i+1:]...)
			return
		}
	}
}

// CompletedSet returns the completed URLs as a set for resume filtering.
func (c *Checkpoint) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(c.Completed))
	for _, u := range c.Completed {
		set[u] = true
	}
	return set
}

// IsStale reports whether the checkpoint is too old to resume from,
// judged at the given time against maxAge. A non-positive maxAge
// falls back to DefaultCheckpointMaxAge.
func (c *Checkpoint) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultCheckpointMaxAge
	}
	return now.Sub(c.LastSavedAt) > maxAge
}

// Valid reports whether the checkpoint can be trusted: the schema
// version matches and the explicit counter agrees with the slice.
func (c *Checkpoint) Valid() bool {
	return c.SchemaVersion == CheckpointSchemaVersion &&
		c.CompletedPages == len(c.Completed)
}
