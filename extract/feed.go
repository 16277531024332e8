package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// ExtractFeed reads an RSS or Atom document. Every item with a valid title
// becomes a candidate, up to maxItems when positive. Item HTML is reduced to
// text; the longer of the item's content and description is used.
func ExtractFeed(body []byte, maxItems int) (*Result, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &Result{Strategy: "feed"}
	for _, item := range feed.Items {
		if maxItems > 0 && len(result.Candidates) >= maxItems {
			break
		}

		title := collapse(htmlText(item.Title))
		if !validTitle(title) {
			continue
		}

		content := htmlText(item.Description)
		if full := htmlText(item.Content); utf8.RuneCountInString(full) > utf8.RuneCountInString(content) {
			content = full
		}

		result.Candidates = append(result.Candidates, Candidate{
			Title:         title,
			Content:       content,
			URL:           strings.TrimSpace(item.Link),
			ImageURL:      feedImage(item),
			PublishedDate: feedDate(item),
		})
	}

	if len(result.Candidates) == 0 {
		return result, ErrNoContent
	}
	return result, nil
}

// feedImage looks at the item image, then image enclosures, then
// media:content and media:thumbnail extensions.
func feedImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc.URL != "" && (enc.Type == "" || strings.HasPrefix(enc.Type, "image/")) {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}

	return ""
}

func feedDate(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.Format(time.RFC3339)
	case item.Published != "":
		return item.Published
	default:
		return item.Updated
	}
}

// htmlText returns the visible text of an HTML fragment.
func htmlText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	doc.Find("script, style").Remove()
	return collapse(doc.Text())
}
