package main

import (
	"os"
	"sort"

	"github.com/pevans/postfeed/fingerprint"
	"github.com/pevans/postfeed/newsfeed"
	"github.com/pevans/postfeed/scraper"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// truncate shortens s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func sourceHashOf(src scraper.SourceConfig) string {
	return fingerprint.SourceHash(src.IdentifierOrID())
}

// newestFirst orders entries by record date, then filename, descending.
func newestFirst(entries []newsfeed.Entry) []newsfeed.Entry {
	sorted := append([]newsfeed.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Record.Date != sorted[j].Record.Date {
			return sorted[i].Record.Date > sorted[j].Record.Date
		}
		return sorted[i].Filename > sorted[j].Filename
	})
	return sorted
}
