// Package normalize turns raw extraction candidates into clean items:
// collapsed whitespace, absolute URLs, ISO dates and bounded content with a
// source footer.
package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/postfeed/extract"
)

// ErrMissingTitle is returned when a candidate has no usable title.
var ErrMissingTitle = errors.New("candidate has no title")

// DefaultFooterIcon prefixes the source line of the footer.
const DefaultFooterIcon = "📰"

// Item is a normalized candidate ready for fingerprinting and persistence.
type Item struct {
	Title string
	// Body is the normalized full text. Fingerprints are computed over it,
	// never over the truncated Content.
	Body string
	// Content is Body truncated to the configured limit plus the footer.
	Content       string
	URL           string
	ImageURL      string
	Date          string // YYYY-MM-DD
	DateDefaulted bool
	ContentType   string
}

// Options controls normalization for one source.
type Options struct {
	MaxContentLength int
	SourceName       string
	FooterIcon       string
	ContentType      string
	DefaultImageURL  string
	// Now is the processing time used for missing or unparseable dates.
	Now time.Time
}

// Normalize cleans a candidate extracted from a document fetched at base.
func Normalize(c extract.Candidate, base string, opts Options) (Item, error) {
	title := CollapseWhitespace(c.Title)
	if title == "" {
		return Item{}, ErrMissingTitle
	}

	body := CollapseWhitespace(c.Content)
	if body == "" {
		body = title
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	item := Item{
		Title:       title,
		Body:        body,
		URL:         ResolveURL(base, c.URL),
		ImageURL:    ResolveURL(base, c.ImageURL),
		ContentType: opts.ContentType,
	}
	if item.ImageURL == "" {
		item.ImageURL = opts.DefaultImageURL
	}

	date, ok := ParseDate(c.PublishedDate, now)
	item.Date = date
	item.DateDefaulted = !ok

	footerURL := item.URL
	if footerURL == "" {
		footerURL = base
	}
	item.Content = Truncate(body, opts.MaxContentLength) + Footer(opts.FooterIcon, opts.SourceName, footerURL)

	return item, nil
}

// CollapseWhitespace trims s and replaces every whitespace run with a single
// space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ResolveURL resolves ref against base. Absolute references are returned
// unchanged; when either side cannot be parsed ref is returned as is.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return refURL.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// Truncate shortens s to at most max runes followed by "...". A max of zero
// or less disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimRight(string(runes[:max]), " ") + "..."
}

// Footer returns the attribution block appended after truncation. An empty
// source name yields no footer.
func Footer(icon, sourceName, link string) string {
	if sourceName == "" {
		return ""
	}
	if icon == "" {
		icon = DefaultFooterIcon
	}
	return fmt.Sprintf("\n\n%s Izvor: %s\n🔗 Pročitaj više: %s", icon, sourceName, link)
}
