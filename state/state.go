// Package state persists per-source deduplication memory: the URLs and
// content hashes already seen and the per-day record counters.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"
)

var (
	// ErrCorruptState is returned alongside an empty state when the state
	// file could not be decoded. The bad file has been moved aside.
	ErrCorruptState = errors.New("corrupt state file")
	// ErrSourceBusy is returned when another run holds the source's lock.
	ErrSourceBusy = errors.New("source run already in progress")
)

// SourceState is one source's memory. State files written by earlier
// versions of the scrapers load as is; their extra fields are ignored.
type SourceState struct {
	ScrapedURLs   []string       `json:"scraped_urls"`
	ContentHashes []string       `json:"content_hashes"`
	Counters      map[string]int `json:"counters"`
	LastRun       string         `json:"last_run,omitempty"`
	SourceName    string         `json:"source_name,omitempty"`
	SourceHash    string         `json:"source_hash,omitempty"`

	urls   map[string]struct{}
	hashes map[string]struct{}
}

// New returns an empty state.
func New() *SourceState {
	s := &SourceState{}
	s.index()
	return s
}

func (s *SourceState) index() {
	if s.ScrapedURLs == nil {
		s.ScrapedURLs = []string{}
	}
	if s.ContentHashes == nil {
		s.ContentHashes = []string{}
	}
	if s.Counters == nil {
		s.Counters = make(map[string]int)
	}
	s.urls = make(map[string]struct{}, len(s.ScrapedURLs))
	for _, u := range s.ScrapedURLs {
		s.urls[u] = struct{}{}
	}
	s.hashes = make(map[string]struct{}, len(s.ContentHashes))
	for _, h := range s.ContentHashes {
		s.hashes[h] = struct{}{}
	}
}

// HasURL reports whether url identity has been seen.
func (s *SourceState) HasURL(url string) bool {
	_, ok := s.urls[url]
	return ok
}

// HasHash reports whether a content hash has been seen.
func (s *SourceState) HasHash(hash string) bool {
	_, ok := s.hashes[hash]
	return ok
}

// AddURL records url as seen. Adding a known URL is a no-op.
func (s *SourceState) AddURL(url string) {
	if url == "" || s.HasURL(url) {
		return
	}
	s.urls[url] = struct{}{}
	s.ScrapedURLs = append(s.ScrapedURLs, url)
}

// AddHash records a content hash as seen.
func (s *SourceState) AddHash(hash string) {
	if hash == "" || s.HasHash(hash) {
		return
	}
	s.hashes[hash] = struct{}{}
	s.ContentHashes = append(s.ContentHashes, hash)
}

// Counter returns the last sequence number used for day, keyed by the
// item date as YYYY-MM-DD.
func (s *SourceState) Counter(day string) int {
	return s.Counters[day]
}

// SetCounter records seq as the last sequence number for day. Counters
// never move backwards.
func (s *SourceState) SetCounter(day string, seq int) {
	if seq > s.Counters[day] {
		s.Counters[day] = seq
	}
}

// Days returns the days with counters, oldest first.
func (s *SourceState) Days() []string {
	days := make([]string, 0, len(s.Counters))
	for d := range s.Counters {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Store keeps one state file per source in a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the state file path for a source.
func (s *Store) Path(sourceID string) string {
	return filepath.Join(s.dir, sourceID+"_state.json")
}

// Load reads a source's state. A missing file yields an empty state and no
// error. An undecodable file is renamed to <name>.corrupt-<unix> and an
// empty state is returned together with ErrCorruptState.
func (s *Store) Load(sourceID string) (*SourceState, error) {
	path := s.Path(sourceID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	st := &SourceState{}
	if err := json.Unmarshal(data, st); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			return New(), fmt.Errorf("%w: %v (and failed to move it aside: %v)", ErrCorruptState, err, renameErr)
		}
		return New(), fmt.Errorf("%w: %v (moved to %s)", ErrCorruptState, err, quarantine)
	}

	st.index()
	return st, nil
}

// Save atomically replaces a source's state file.
func (s *Store) Save(sourceID string, st *SourceState) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := renameio.WriteFile(s.Path(sourceID), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}
