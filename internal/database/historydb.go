package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("database: not found")

// HistoryDB stores fetch history and cached robots policies in SQLite.
// It manages connection pooling and provides CRUD operations for both.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended; a checkpoint
	// write and a robots lookup can then overlap without blocking.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the given directory.
// When CreateIfNotExists is false and no database exists, an error is
// returned instead of silently creating an empty one.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, "docdex.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; one connection avoids lock
	// contention entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Fetch records, one row per (url, target), upserted per fetch
	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		target TEXT NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_hash TEXT,
		title TEXT,
		UNIQUE(url, target)
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_url ON fetches(url);
	CREATE INDEX IF NOT EXISTS idx_fetches_target ON fetches(target);
	CREATE INDEX IF NOT EXISTS idx_fetches_time ON fetches(fetched_at);

	-- Cached robots policies, one row per domain
	CREATE TABLE IF NOT EXISTS robots_cache (
		domain TEXT PRIMARY KEY,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		policy_json TEXT NOT NULL
	);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// FetchRecord is one row of fetch history.
type FetchRecord struct {
	ID          int64
	URL         string
	Target      string
	FetchedAt   time.Time
	StatusCode  int
	ContentHash string
	Title       string
}

// RecordFetch inserts or updates the fetch record for (url, target).
func (hdb *HistoryDB) RecordFetch(ctx context.Context, record *FetchRecord) error {
	query := `
	INSERT INTO fetches (url, target, status_code, content_hash, title)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(url, target) DO UPDATE SET
		status_code = excluded.status_code,
		content_hash = excluded.content_hash,
		title = excluded.title,
		fetched_at = CURRENT_TIMESTAMP
	`

	if _, err := hdb.db.ExecContext(ctx, query,
		record.URL, record.Target, record.StatusCode, record.ContentHash, record.Title,
	); err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	return nil
}

// GetFetch retrieves the fetch record for (url, target).
// Returns ErrNotFound when no record exists.
func (hdb *HistoryDB) GetFetch(ctx context.Context, url, target string) (*FetchRecord, error) {
	query := `
	SELECT id, url, target, fetched_at, status_code, content_hash, title
	FROM fetches
	WHERE url = ? AND target = ?
	`

	var record FetchRecord
	var fetchedAt string
	err := hdb.db.QueryRowContext(ctx, query, url, target).Scan(
		&record.ID, &record.URL, &record.Target, &fetchedAt,
		&record.StatusCode, &record.ContentHash, &record.Title,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch record: %w", err)
	}

	record.FetchedAt = parseTimestamp(fetchedAt)
	return &record, nil
}

// HasRecentFetch checks if a URL was fetched for any target within the
// given duration.
func (hdb *HistoryDB) HasRecentFetch(ctx context.Context, url string, within time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM fetches
	WHERE url = ? AND fetched_at > datetime('now', ?)
	`

	modifier := fmt.Sprintf("-%d seconds", int(within.Seconds()))

	var count int
	if err := hdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}
	return count > 0, nil
}

// CountFetches returns the number of recorded fetches for a target.
func (hdb *HistoryDB) CountFetches(ctx context.Context, target string) (int, error) {
	var count int
	err := hdb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fetches WHERE target = ?`, target).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fetches: %w", err)
	}
	return count, nil
}

// SaveRobotsPolicy stores a serialized robots policy for a domain,
// replacing any previous entry.
func (hdb *HistoryDB) SaveRobotsPolicy(ctx context.Context, domain string, policyJSON []byte) error {
	query := `
	INSERT INTO robots_cache (domain, policy_json, fetched_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(domain) DO UPDATE SET
		policy_json = excluded.policy_json,
		fetched_at = CURRENT_TIMESTAMP
	`

	if _, err := hdb.db.ExecContext(ctx, query, domain, string(policyJSON)); err != nil {
		return fmt.Errorf("failed to save robots policy: %w", err)
	}
	return nil
}

// LoadRobotsPolicy retrieves the cached robots policy for a domain.
// Returns ErrNotFound when no entry exists; staleness is the caller's
// concern, judged against the returned fetch time.
func (hdb *HistoryDB) LoadRobotsPolicy(ctx context.Context, domain string) ([]byte, time.Time, error) {
	query := `SELECT policy_json, fetched_at FROM robots_cache WHERE domain = ?`

	var policyJSON string
	var fetchedAt string
	err := hdb.db.QueryRowContext(ctx, query, domain).Scan(&policyJSON, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load robots policy: %w", err)
	}

	return []byte(policyJSON), parseTimestamp(fetchedAt), nil
}

// PurgeRobotsPolicies deletes cached policies older than maxAge.
func (hdb *HistoryDB) PurgeRobotsPolicies(ctx context.Context, maxAge time.Duration) error {
	modifier := fmt.Sprintf("-%d seconds", int(maxAge.Seconds()))
	_, err := hdb.db.ExecContext(ctx,
		`DELETE FROM robots_cache WHERE fetched_at <= datetime('now', ?)`, modifier)
	if err != nil {
		return fmt.Errorf("failed to purge robots policies: %w", err)
	}
	return nil
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp parses a timestamp string using multiple formats.
// SQLite returns different formats depending on configuration. A zero
// time is returned when nothing matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
