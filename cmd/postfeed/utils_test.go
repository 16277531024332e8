package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pevans/postfeed/newsfeed"
)

// TestTruncate verifies rune-aware truncation.
func TestTruncate(t *testing.T) {
	assert.Equal(t, "Bihać", truncate("Bihać", 10))
	assert.Equal(t, "Radio B...", truncate("Radio Bihać i okolina", 10))
}

// TestWrapText verifies wrapping keeps the footer's line breaks.
func TestWrapText(t *testing.T) {
	text := "one two three four\n\n📰 Izvor: Radio"
	assert.Equal(t, "one two\nthree four\n\n📰 Izvor:\nRadio", wrapText(text, 10))
}

// TestNewestFirst verifies ordering by date, then filename.
func TestNewestFirst(t *testing.T) {
	entries := []newsfeed.Entry{
		{Filename: "a-20250101-001.json", Record: newsfeed.Record{Date: "2025-01-01"}},
		{Filename: "a-20250102-001.json", Record: newsfeed.Record{Date: "2025-01-02"}},
		{Filename: "a-20250101-002.json", Record: newsfeed.Record{Date: "2025-01-01"}},
	}

	sorted := newestFirst(entries)
	assert.Equal(t, "a-20250102-001.json", sorted[0].Filename)
	assert.Equal(t, "a-20250101-002.json", sorted[1].Filename)
	assert.Equal(t, "a-20250101-001.json", sorted[2].Filename)
	assert.Equal(t, "a-20250101-001.json", entries[0].Filename, "input is not modified")
}
