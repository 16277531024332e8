package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/pevans/postfeed/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

// TestParseDate verifies every supported date format.
func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dotted day first", "05.02.2025", "2025-02-05"},
		{"dotted with prefix", "Objavljeno: 5. 2. 2025. u 10:15", "2025-02-05"},
		{"iso date", "2025-03-11", "2025-03-11"},
		{"iso datetime", "2025-03-11T08:15:00+01:00", "2025-03-11"},
		{"dotted year first", "2025.03.11", "2025-03-11"},
		{"slashed", "11/03/2025", "2025-03-11"},
		{"rfc1123", "Tue, 11 Mar 2025 10:00:00 GMT", "2025-03-11"},
		{"rfc1123z", "Tue, 11 Mar 2025 10:00:00 +0100", "2025-03-11"},
		{"english day month", "11 Mar 2025", "2025-03-11"},
		{"english month day", "March 11, 2025", "2025-03-11"},
		{"bosnian genitive", "12. marta 2025.", "2025-03-12"},
		{"bosnian nominative", "3 februar 2025", "2025-02-03"},
		{"serbian august", "7. avgusta 2024", "2024-08-07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in, testNow)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseDate_DefaultsToNow verifies unparseable or missing dates fall back
// to the processing date.
func TestParseDate_DefaultsToNow(t *testing.T) {
	for _, in := range []string{"", "   ", "nema datuma"} {
		got, ok := ParseDate(in, testNow)
		assert.False(t, ok, in)
		assert.Equal(t, "2025-03-14", got, in)
	}
}

// TestResolveURL verifies relative reference resolution.
func TestResolveURL(t *testing.T) {
	base := "https://radiobihac.com/vijesti/index.php"

	assert.Equal(t, "https://radiobihac.com/vijesti/clanak-1", ResolveURL(base, "clanak-1"))
	assert.Equal(t, "https://radiobihac.com/img/a.jpg", ResolveURL(base, "/img/a.jpg"))
	assert.Equal(t, "https://cdn.example.com/a.jpg", ResolveURL(base, "//cdn.example.com/a.jpg"))
	assert.Equal(t, "https://other.ba/x", ResolveURL(base, "https://other.ba/x"))
	assert.Equal(t, "", ResolveURL(base, "  "))
	assert.Equal(t, "relative", ResolveURL("", "relative"))
}

// TestTruncate verifies rune-aware truncation.
func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "čćšđž...", Truncate("čćšđžčćšđž", 5))
	assert.Equal(t, "abc...", Truncate("abc def", 4))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}

// TestNormalize verifies a full candidate normalization.
func TestNormalize(t *testing.T) {
	c := extract.Candidate{
		Title:         "  Novi   park \n u centru ",
		Content:       strings.Repeat("Tekst vijesti. ", 100),
		URL:           "/vijesti/novi-park",
		ImageURL:      "/img/park.jpg",
		PublishedDate: "12.03.2025",
	}

	item, err := Normalize(c, "https://radiobihac.com/", Options{
		MaxContentLength: 100,
		SourceName:       "Radio Bihać",
		ContentType:      "novosti",
		Now:              testNow,
	})
	require.NoError(t, err)

	assert.Equal(t, "Novi park u centru", item.Title)
	assert.Equal(t, "https://radiobihac.com/vijesti/novi-park", item.URL)
	assert.Equal(t, "https://radiobihac.com/img/park.jpg", item.ImageURL)
	assert.Equal(t, "2025-03-12", item.Date)
	assert.False(t, item.DateDefaulted)
	assert.Equal(t, "novosti", item.ContentType)

	footer := "\n\n📰 Izvor: Radio Bihać\n🔗 Pročitaj više: https://radiobihac.com/vijesti/novi-park"
	assert.True(t, strings.HasSuffix(item.Content, footer))
	assert.Contains(t, item.Content, "...")
	assert.Equal(t, Truncate(item.Body, 100)+footer, item.Content)
	assert.Greater(t, len([]rune(item.Body)), 100)
}

// TestNormalize_ContentFallsBackToTitle verifies that empty content never
// produces an empty item body.
func TestNormalize_ContentFallsBackToTitle(t *testing.T) {
	item, err := Normalize(extract.Candidate{Title: "Samo naslov"}, "https://example.ba", Options{Now: testNow})
	require.NoError(t, err)

	assert.Equal(t, "Samo naslov", item.Body)
	assert.Equal(t, "Samo naslov", item.Content)
	assert.Equal(t, "2025-03-14", item.Date)
	assert.True(t, item.DateDefaulted)
}

// TestNormalize_MissingTitle verifies that candidates without a title are
// rejected.
func TestNormalize_MissingTitle(t *testing.T) {
	_, err := Normalize(extract.Candidate{Title: " \n ", Content: "body"}, "https://example.ba", Options{})
	assert.ErrorIs(t, err, ErrMissingTitle)
}

// TestNormalize_DefaultImage verifies the configured default image is used
// when the candidate has none.
func TestNormalize_DefaultImage(t *testing.T) {
	item, err := Normalize(extract.Candidate{Title: "Naslov vijesti"}, "https://example.ba", Options{
		DefaultImageURL: "https://example.ba/logo.png",
		Now:             testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.ba/logo.png", item.ImageURL)
}

// TestFooter verifies the footer shape and icon default.
func TestFooter(t *testing.T) {
	assert.Equal(t, "", Footer("", "", "https://x"))
	assert.Equal(t, "\n\n📺 Izvor: Klix\n🔗 Pročitaj više: https://x", Footer("📺", "Klix", "https://x"))
	assert.True(t, strings.HasPrefix(Footer("", "Klix", "https://x"), "\n\n📰 Izvor"))
}

// TestBuildDate_RejectsRollover verifies impossible calendar dates are not
// silently shifted.
func TestBuildDate_RejectsRollover(t *testing.T) {
	_, ok := buildDate("2025", "2", "31")
	assert.False(t, ok)

	got, ok := buildDate("2024", "2", "29")
	assert.True(t, ok)
	assert.Equal(t, "2024-02-29", got)
}
