package newsfeed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: create a test news feed
func setupTestFeed(t *testing.T) *NewsFeed {
	t.Helper()
	feed, err := NewNewsFeed(t.TempDir())
	require.NoError(t, err)
	return feed
}

// Test helper: create a sample record
func createSampleRecord(title string) Record {
	return Record{
		Title:       title,
		ID:          "1a2b3c4d",
		Content:     "Sadržaj vijesti & više <b>teksta</b>",
		URL:         "https://radiobihac.com/vijesti/1?a=1&b=2",
		Date:        "2025-03-12",
		Source:      "0123456789ab",
		SourceName:  "Radio Bihać",
		ContentHash: "abcdef012345",
		ScrapedAt:   "2025-03-12T10:00:00",
	}
}

// TestAdd_WritesRecord verifies a record is written with the expected shape.
func TestAdd_WritesRecord(t *testing.T) {
	feed := setupTestFeed(t)
	name := Filename("0123456789ab", "20250312", 1)
	assert.Equal(t, "0123456789ab-20250312-001.json", name)

	require.NoError(t, feed.Add(name, createSampleRecord("Prva vijest")))

	raw, err := os.ReadFile(filepath.Join(feed.Dir(), name))
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, `"scheduled_publish_time": null`)
	assert.Contains(t, text, `"published": ""`)
	assert.Contains(t, text, "Radio Bihać", "non-ASCII is not escaped")
	assert.Contains(t, text, "?a=1&b=2", "HTML characters are not escaped")
	assert.NotContains(t, text, "image_url", "absent image is omitted")
	assert.True(t, strings.HasPrefix(text, "{\n  \"title\""))

	rec, err := feed.Get(name)
	require.NoError(t, err)
	assert.Equal(t, "Prva vijest", rec.Title)
	assert.Nil(t, rec.ScheduledPublishTime)
}

// TestAdd_NeverOverwrites verifies an existing record is not replaced.
func TestAdd_NeverOverwrites(t *testing.T) {
	feed := setupTestFeed(t)
	name := Filename("0123456789ab", "20250312", 1)

	require.NoError(t, feed.Add(name, createSampleRecord("Original")))
	err := feed.Add(name, createSampleRecord("Replacement"))
	assert.ErrorIs(t, err, ErrRecordExists)

	rec, err := feed.Get(name)
	require.NoError(t, err)
	assert.Equal(t, "Original", rec.Title)
}

// TestAdd_RejectsPathTraversal verifies filenames cannot escape the
// directory.
func TestAdd_RejectsPathTraversal(t *testing.T) {
	feed := setupTestFeed(t)
	assert.Error(t, feed.Add("../escape.json", createSampleRecord("x")))
	assert.Error(t, feed.Add("", createSampleRecord("x")))
}

// TestGet_NotFound verifies a missing record returns ErrRecordNotFound.
func TestGet_NotFound(t *testing.T) {
	feed := setupTestFeed(t)
	_, err := feed.Get("missing.json")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

// TestList verifies listing order and per-file error collection.
func TestList(t *testing.T) {
	feed := setupTestFeed(t)

	require.NoError(t, feed.Add(Filename("aaaaaaaaaaaa", "20250312", 2), createSampleRecord("Druga")))
	require.NoError(t, feed.Add(Filename("aaaaaaaaaaaa", "20250312", 1), createSampleRecord("Prva")))
	require.NoError(t, os.WriteFile(filepath.Join(feed.Dir(), "broken.json"), []byte("{"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(feed.Dir(), "notes.txt"), []byte("x"), 0o600))

	result, err := feed.List()
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Prva", result.Entries[0].Record.Title)
	assert.Equal(t, "Druga", result.Entries[1].Record.Title)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken.json", result.Errors[0].Filename)
}

// TestMarkPublished verifies the publisher marker is set once and never
// overwritten.
func TestMarkPublished(t *testing.T) {
	feed := setupTestFeed(t)
	first := Filename("aaaaaaaaaaaa", "20250312", 1)
	second := Filename("aaaaaaaaaaaa", "20250312", 2)
	require.NoError(t, feed.Add(first, createSampleRecord("Prva")))
	require.NoError(t, feed.Add(second, createSampleRecord("Druga")))

	require.NoError(t, feed.MarkPublished(first, "2025-03-12T12:00:00"))
	assert.ErrorIs(t, feed.MarkPublished(first, "2025-03-13T12:00:00"), ErrAlreadyPublished)
	assert.Error(t, feed.MarkPublished(second, " "))

	rec, err := feed.Get(first)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-12T12:00:00", rec.Published)

	unpublished, err := feed.ListUnpublished()
	require.NoError(t, err)
	require.Len(t, unpublished.Entries, 1)
	assert.Equal(t, second, unpublished.Entries[0].Filename)
}

// TestParseFilename verifies record filenames round trip.
func TestParseFilename(t *testing.T) {
	hash, day, seq, err := ParseFilename("0123456789ab-20250312-042.json")
	require.NoError(t, err)
	assert.Equal(t, "0123456789ab", hash)
	assert.Equal(t, "20250312", day)
	assert.Equal(t, 42, seq)

	_, _, seq, err = ParseFilename(Filename("0123456789ab", "20250312", 1234))
	require.NoError(t, err)
	assert.Equal(t, 1234, seq)

	_, _, _, err = ParseFilename("state.json")
	assert.Error(t, err)
}
