package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minBlockLength is the length a text block must exceed to be harvested.
	minBlockLength = 50
	// maxBlocks is the number of blocks joined into fallback content.
	maxBlocks = 15
)

// boilerplateTerms mark blocks that belong to site chrome rather than
// article text.
var boilerplateTerms = []string{
	"menu", "home", "contact", "kontakt", "copyright", "privacy", "terms",
	"cookie", "facebook", "twitter", "instagram", "linkedin", "youtube",
	"search", "pretraga", "login", "register", "subscribe", "sva prava",
}

var chromeSelectors = "nav, footer, header, aside, form, iframe"

// harvestParagraphs builds a single candidate from the page's paragraph
// blocks. It reports false when the page has no usable title.
func harvestParagraphs(doc *goquery.Document) (Candidate, bool) {
	title := collapse(metaContent(doc, "og:title"))
	if !validTitle(title) {
		title = collapse(doc.Find("h1").First().Text())
	}
	if !validTitle(title) {
		title = collapse(doc.Find("title").First().Text())
	}
	if !validTitle(title) {
		return Candidate{}, false
	}

	c := Candidate{
		Title:         title,
		ImageURL:      metaContent(doc, "og:image", "twitter:image"),
		PublishedDate: metaContent(doc, "article:published_time"),
	}

	doc.Find(chromeSelectors).Remove()

	var blocks []string
	doc.Find("p, blockquote").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapse(s.Text())
		if utf8.RuneCountInString(text) <= minBlockLength || isBoilerplate(text) {
			return true
		}
		blocks = append(blocks, text)
		return len(blocks) < maxBlocks
	})
	c.Content = strings.Join(blocks, " ")

	return c, true
}

func isBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range boilerplateTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
