package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

// TestLoad_MissingFile verifies a first run starts from an empty state.
func TestLoad_MissingFile(t *testing.T) {
	store := createTestStore(t)

	st, err := store.Load("radiobihac")
	require.NoError(t, err)
	assert.Empty(t, st.ScrapedURLs)
	assert.Empty(t, st.ContentHashes)
	assert.Equal(t, 0, st.Counter("2025-03-12"))
}

// TestSaveLoad_RoundTrip verifies state survives a save and reload.
func TestSaveLoad_RoundTrip(t *testing.T) {
	store := createTestStore(t)

	st := New()
	st.AddURL("https://radiobihac.com/a?x=1&y=2")
	st.AddHash("abcdef012345")
	st.SetCounter("2025-03-12", 3)
	st.LastRun = "2025-03-12T10:00:00"
	st.SourceName = "Radio Bihać"
	st.SourceHash = "0123456789ab"
	require.NoError(t, store.Save("radiobihac", st))

	loaded, err := store.Load("radiobihac")
	require.NoError(t, err)
	assert.True(t, loaded.HasURL("https://radiobihac.com/a?x=1&y=2"))
	assert.True(t, loaded.HasHash("abcdef012345"))
	assert.False(t, loaded.HasHash("ffffffffffff"))
	assert.Equal(t, 3, loaded.Counter("2025-03-12"))
	assert.Equal(t, "Radio Bihać", loaded.SourceName)

	raw, err := os.ReadFile(store.Path("radiobihac"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"scraped_urls"`)
	assert.Contains(t, string(raw), "a?x=1&y=2", "URLs are written unescaped")
}

// TestLoad_LegacyFile verifies state files from the earlier scrapers load.
func TestLoad_LegacyFile(t *testing.T) {
	store := createTestStore(t)
	legacy := `{
  "scraped_urls": ["https://www.klix.ba/vijesti/1"],
  "content_hashes": ["5eb63bbbe01e"],
  "counters": {"2025-03-11": 7},
  "last_run": "2025-03-11T21:00:00.123456",
  "script_name": "klix_feed.py",
  "script_hash": "3f1c0b8e2a9d"
}`
	require.NoError(t, os.WriteFile(store.Path("klix"), []byte(legacy), 0o600))

	st, err := store.Load("klix")
	require.NoError(t, err)
	assert.True(t, st.HasURL("https://www.klix.ba/vijesti/1"))
	assert.True(t, st.HasHash("5eb63bbbe01e"))
	assert.Equal(t, 7, st.Counter("2025-03-11"))
}

// TestLoad_Corrupt verifies a corrupt file is moved aside and an empty
// state is returned with ErrCorruptState.
func TestLoad_Corrupt(t *testing.T) {
	store := createTestStore(t)
	path := store.Path("broken")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	st, err := store.Load("broken")
	require.ErrorIs(t, err, ErrCorruptState)
	require.NotNil(t, st)
	assert.Empty(t, st.ScrapedURLs)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// The next load starts cleanly.
	st, err = store.Load("broken")
	require.NoError(t, err)
	assert.Empty(t, st.ContentHashes)
}

// TestSourceState_Dedup verifies idempotent additions.
func TestSourceState_Dedup(t *testing.T) {
	st := New()
	st.AddURL("u")
	st.AddURL("u")
	st.AddURL("")
	st.AddHash("h")
	st.AddHash("h")

	assert.Equal(t, []string{"u"}, st.ScrapedURLs)
	assert.Equal(t, []string{"h"}, st.ContentHashes)
}

// TestSetCounter_Monotonic verifies counters never decrease.
func TestSetCounter_Monotonic(t *testing.T) {
	st := New()
	st.SetCounter("2025-03-12", 5)
	st.SetCounter("2025-03-12", 2)
	st.SetCounter("2025-03-11", 1)

	assert.Equal(t, 5, st.Counter("2025-03-12"))
	assert.Equal(t, []string{"2025-03-11", "2025-03-12"}, st.Days())
}

// TestSave_EmptyStateShape verifies an empty state encodes lists, not nulls.
func TestSave_EmptyStateShape(t *testing.T) {
	store := createTestStore(t)
	require.NoError(t, store.Save("empty", New()))

	raw, err := os.ReadFile(store.Path("empty"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{}, decoded["scraped_urls"])
	assert.Equal(t, []any{}, decoded["content_hashes"])
}

// TestLock verifies that a source cannot be locked twice.
func TestLock(t *testing.T) {
	store := createTestStore(t)

	lock, err := store.Lock("radiobihac")
	require.NoError(t, err)

	_, err = store.Lock("radiobihac")
	assert.ErrorIs(t, err, ErrSourceBusy)

	other, err := store.Lock("klix")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, lock.Release())
	again, err := store.Lock("radiobihac")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

// TestLock_Stale verifies an abandoned lock is taken over.
func TestLock_Stale(t *testing.T) {
	store := createTestStore(t)
	lock, err := store.Lock("radiobihac")
	require.NoError(t, err)

	old := time.Now().Add(-2 * StaleLockAge)
	require.NoError(t, os.Chtimes(lock.path, old, old))

	taken, err := store.Lock("radiobihac")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(taken.path, "radiobihac.lock"))
	require.NoError(t, taken.Release())
}
