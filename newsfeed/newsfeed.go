package newsfeed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
)

var (
	ErrRecordExists     = errors.New("record already exists")
	ErrRecordNotFound   = errors.New("record not found")
	ErrAlreadyPublished = errors.New("record already published")
)

// NewsFeed is the output directory: one JSON file per record.
type NewsFeed struct {
	storageDir string
}

// ReadError describes a failure to read a single record file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// Entry is a record together with its filename.
type Entry struct {
	Filename string
	Record   Record
}

// ListResult contains the results of listing records, including any
// per-file errors that occurred during the operation.
type ListResult struct {
	Entries []Entry
	Errors  []ReadError
}

// NewNewsFeed creates a news feed with the specified storage directory.
func NewNewsFeed(storageDir string) (*NewsFeed, error) {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &NewsFeed{
		storageDir: storageDir,
	}, nil
}

// Dir returns the storage directory.
func (nf *NewsFeed) Dir() string {
	return nf.storageDir
}

// Add writes a new record under filename. An existing file is never
// overwritten; ErrRecordExists is returned instead. The file appears
// atomically, so readers never observe a partial record.
func (nf *NewsFeed) Add(filename string, rec Record) error {
	path, err := nf.path(filename)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return ErrRecordExists
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check record: %w", err)
	}

	return writeRecord(path, rec)
}

// Get reads a record by filename.
func (nf *NewsFeed) Get(filename string) (*Record, error) {
	path, err := nf.path(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &rec, nil
}

// List returns all records in filename order. Corrupted or invalid files are
// collected in the result's Errors slice rather than causing the entire
// operation to fail.
func (nf *NewsFeed) List() (*ListResult, error) {
	entries, err := os.ReadDir(nf.storageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	result := &ListResult{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(nf.storageDir, entry.Name()))
		if err != nil {
			result.Errors = append(result.Errors, ReadError{
				Filename: entry.Name(),
				Err:      err,
			})
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			result.Errors = append(result.Errors, ReadError{
				Filename: entry.Name(),
				Err:      err,
			})
			continue
		}

		result.Entries = append(result.Entries, Entry{Filename: entry.Name(), Record: rec})
	}

	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Filename < result.Entries[j].Filename
	})

	return result, nil
}

// ListUnpublished returns the records the publisher has not yet claimed.
func (nf *NewsFeed) ListUnpublished() (*ListResult, error) {
	all, err := nf.List()
	if err != nil {
		return nil, err
	}

	result := &ListResult{Errors: all.Errors}
	for _, e := range all.Entries {
		if !e.Record.IsPublished() {
			result.Entries = append(result.Entries, e)
		}
	}
	return result, nil
}

// MarkPublished sets the published marker of a record. A record that already
// carries a marker is left untouched and ErrAlreadyPublished is returned.
func (nf *NewsFeed) MarkPublished(filename, marker string) error {
	if strings.TrimSpace(marker) == "" {
		return errors.New("published marker must not be empty")
	}

	rec, err := nf.Get(filename)
	if err != nil {
		return err
	}
	if rec.IsPublished() {
		return ErrAlreadyPublished
	}

	rec.Published = marker
	path, err := nf.path(filename)
	if err != nil {
		return err
	}
	return writeRecord(path, *rec)
}

func (nf *NewsFeed) path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid record filename %q", filename)
	}
	return filepath.Join(nf.storageDir, filename), nil
}

// writeRecord encodes rec the way the publisher expects: two-space indent
// and unescaped non-ASCII and HTML characters.
func writeRecord(path string, rec Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}
