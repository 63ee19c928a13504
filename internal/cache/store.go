package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docdex/docdex/internal/model"
)

var (
	// ErrNotCached is returned when no index exists for a target.
	ErrNotCached = errors.New("cache: target not cached")
	// ErrNoCheckpoint is returned when a target has no usable
	// checkpoint. Corrupted and schema-mismatched checkpoint files
	// are treated as absent.
	ErrNoCheckpoint = errors.New("cache: no checkpoint")
)

const (
	indexFile      = "index.json"
	manifestFile   = "sitemap.json"
	checkpointFile = ".checkpoint.json"
	pagesDirName   = "pages"
)

// Artifacts records which optional files an entry carries.
type Artifacts struct {
	Sitemap bool `json:"sitemap"`
	Pages   bool `json:"pages"`
}

// Index is the per-entry metadata persisted as index.json.
type Index struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	SourceURL  string    `json:"sourceUrl"`
	SourceType string    `json:"sourceType"`
	FetchedAt  time.Time `json:"fetchedAt"`
	PageCount  int       `json:"pageCount"`
	TotalBytes int64     `json:"totalBytes"`
	Artifacts  Artifacts `json:"artifacts"`
}

// Page is one extracted page together with the metadata written into
// its frontmatter header.
type Page struct {
	URL         string    `yaml:"url"`
	Title       string    `yaml:"title,omitempty"`
	ExtractedAt time.Time `yaml:"extractedAt"`
	Markdown    string    `yaml:"-"`
}

// Entry pairs a cached target with its index.
type Entry struct {
	Name    string
	Version string
	Index   Index
}

// Store provides access to one cache root. The zero value is not
// usable; construct with New.
type Store struct {
	root string
}

// New returns a Store rooted at dir. The directory is created lazily
// on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory owned by a target.
func (s *Store) Dir(name, version string) string {
	return filepath.Join(s.root, name, version)
}

// PagesDir returns the page directory for a target.
func (s *Store) PagesDir(name, version string) string {
	return filepath.Join(s.Dir(name, version), pagesDirName)
}

// CheckpointPath returns the checkpoint file location for a target.
func (s *Store) CheckpointPath(name, version string) string {
	return filepath.Join(s.Dir(name, version), checkpointFile)
}

// WriteIndex persists idx as the target's index.json.
func (s *Store) WriteIndex(idx *Index) error {
	if idx.Name == "" || idx.Version == "" {
		return fmt.Errorf("cache: index requires name and version")
	}
	return s.writeJSON(filepath.Join(s.Dir(idx.Name, idx.Version), indexFile), idx)
}

// ReadIndex loads the target's index.json. Returns ErrNotCached when
// the target has never completed an ingest.
func (s *Store) ReadIndex(name, version string) (*Index, error) {
	var idx Index
	path := filepath.Join(s.Dir(name, version), indexFile)
	if err := s.readJSON(path, &idx); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s@%s", ErrNotCached, name, version)
		}
		return nil, err
	}
	return &idx, nil
}

// WriteManifest persists the page manifest as sitemap.json.
func (s *Store) WriteManifest(name, version string, m *model.Manifest) error {
	return s.writeJSON(filepath.Join(s.Dir(name, version), manifestFile), m)
}

// ReadManifest loads the page manifest. A missing manifest returns
// ErrNotCached so sync can fall back to a full fetch.
func (s *Store) ReadManifest(name, version string) (*model.Manifest, error) {
	var m model.Manifest
	path := filepath.Join(s.Dir(name, version), manifestFile)
	if err := s.readJSON(path, &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s@%s", ErrNotCached, name, version)
		}
		return nil, err
	}
	return &m, nil
}

// WritePage stores one extracted page under pages/ and returns the
// file name it was written to and the size of the markdown body.
func (s *Store) WritePage(name, version string, p *Page) (string, int64, error) {
	if p.URL == "" {
		return "", 0, fmt.Errorf("cache: page requires a URL")
	}
	filename := Filename(p.URL)
	dir := s.PagesDir(name, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("cache: create pages dir: %w", err)
	}

	header, err := yaml.Marshal(p)
	if err != nil {
		return "", 0, fmt.Errorf("cache: encode page header: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	b.WriteString(p.Markdown)
	b.WriteString("\n")

	if err := writeFileAtomic(filepath.Join(dir, filename), []byte(b.String())); err != nil {
		return "", 0, err
	}
	return filename, int64(len(p.Markdown)), nil
}

// ReadPage loads a page file previously written by WritePage.
func (s *Store) ReadPage(name, version, filename string) (*Page, error) {
	raw, err := os.ReadFile(filepath.Join(s.PagesDir(name, version), filename))
	if err != nil {
		return nil, fmt.Errorf("cache: read page: %w", err)
	}
	return parsePage(raw)
}

// CountPages reports how many page files a target holds. A missing
// pages directory counts as zero.
func (s *Store) CountPages(name, version string) (int, error) {
	entries, err := os.ReadDir(s.PagesDir(name, version))
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read pages dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			n++
		}
	}
	return n, nil
}

// SaveCheckpoint persists crawl progress for a target.
func (s *Store) SaveCheckpoint(name, version string, cp *model.Checkpoint) error {
	return s.writeJSON(s.CheckpointPath(name, version), cp)
}

// LoadCheckpoint restores crawl progress. Schema mismatches, internal
// inconsistencies, and unreadable files all surface as
// ErrNoCheckpoint; resume is best effort and a bad checkpoint must
// never block a fresh crawl.
func (s *Store) LoadCheckpoint(name, version string) (*model.Checkpoint, error) {
	raw, err := os.ReadFile(s.CheckpointPath(name, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("cache: read checkpoint: %w", err)
	}
	var cp model.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("%w: corrupted: %v", ErrNoCheckpoint, err)
	}
	if cp.SchemaVersion != model.CheckpointSchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d", ErrNoCheckpoint, cp.SchemaVersion)
	}
	if !cp.Valid() {
		return nil, fmt.Errorf("%w: inconsistent progress counters", ErrNoCheckpoint)
	}
	return &cp, nil
}

// RemoveCheckpoint deletes the checkpoint file. Removing a checkpoint
// that does not exist is not an error.
func (s *Store) RemoveCheckpoint(name, version string) error {
	err := os.Remove(s.CheckpointPath(name, version))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: remove checkpoint: %w", err)
	}
	return nil
}

// HasCheckpoint reports whether a checkpoint file exists, without
// validating it.
func (s *Store) HasCheckpoint(name, version string) bool {
	_, err := os.Stat(s.CheckpointPath(name, version))
	return err == nil
}

// Entries lists all cached targets that carry an index, sorted by
// name then version.
func (s *Store) Entries() ([]Entry, error) {
	names, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read root: %w", err)
	}

	var entries []Entry
	for _, n := range names {
		if !n.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(s.root, n.Name()))
		if err != nil {
			continue
		}
		for _, v := range versions {
			if !v.IsDir() {
				continue
			}
			idx, err := s.ReadIndex(n.Name(), v.Name())
			if err != nil {
				continue
			}
			entries = append(entries, Entry{Name: n.Name(), Version: v.Name(), Index: *idx})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Version < entries[j].Version
	})
	return entries, nil
}

func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

func (s *Store) readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cache: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the destination
// directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename into place: %w", err)
	}
	return nil
}

func parsePage(raw []byte) (*Page, error) {
	text := string(raw)
	if !strings.HasPrefix(text, "---\n") {
		return &Page{Markdown: strings.TrimSpace(text)}, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return &Page{Markdown: strings.TrimSpace(text)}, nil
	}
	var p Page
	if err := yaml.Unmarshal([]byte(rest[:end]), &p); err != nil {
		return nil, fmt.Errorf("cache: decode page header: %w", err)
	}
	p.Markdown = strings.TrimSpace(rest[end+len("\n---\n"):])
	return &p, nil
}
