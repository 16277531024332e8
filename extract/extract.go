// Package extract turns fetched documents into extraction candidates. HTML
// documents are interpreted with an ordered list of declarative strategies;
// the first strategy that produces real content wins and nothing is merged
// across strategies. Feeds are read with gofeed.
package extract

import (
	"errors"
	"unicode/utf8"
)

// ErrNoContent is returned when a document yields no candidate at all, not
// even from the paragraph fallback.
var ErrNoContent = errors.New("no content extracted")

// DefaultMinContentLength is the content length a candidate must exceed for
// its strategy to be committed.
const DefaultMinContentLength = 100

// MinTitleLength is the shortest title accepted. Shorter titles are almost
// always icons, dates or navigation labels.
const MinTitleLength = 5

// Candidate is one item found in a document. Values are raw: whitespace is
// not collapsed and URLs may be relative.
type Candidate struct {
	Title         string
	Content       string
	URL           string
	ImageURL      string
	PublishedDate string
}

// Result is the outcome of extracting one document.
type Result struct {
	Candidates []Candidate
	// Strategy names the committed strategy, "fallback" or "feed".
	Strategy string
	// Fallback is set when no configured strategy committed.
	Fallback bool
	// ShortContent counts committed candidates whose content is at or
	// below the minimum length. They are kept; normalization falls back to
	// the title for empty content. Always zero for accept_any strategies.
	ShortContent int
}

// Options tunes HTML extraction.
type Options struct {
	MinContentLength int
	// MaxItems overrides each strategy's own item cap when positive.
	MaxItems int
	// BaseURL is the document's URL, used by the readability strategy.
	BaseURL string
}

func (o Options) minContentLength() int {
	if o.MinContentLength > 0 {
		return o.MinContentLength
	}
	return DefaultMinContentLength
}

func validTitle(title string) bool {
	return utf8.RuneCountInString(title) >= MinTitleLength
}
