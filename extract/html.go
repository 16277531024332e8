package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/pevans/postfeed/scraper"
)

// alwaysStrip is removed from every document before any text is read.
var alwaysStrip = []string{"script", "style", "noscript", "template"}

// ExtractHTML applies strategies in order and commits to the first one that
// yields a candidate whose content is longer than the minimum, or any titled
// candidate when the strategy accepts any. Every titled candidate of the
// committed strategy is returned; Result.ShortContent counts those below the
// minimum. When no strategy commits, the paragraph fallback runs. ErrNoContent is returned when even the fallback finds no
// title.
func ExtractHTML(body []byte, strategies []scraper.Strategy, opts Options) (*Result, error) {
	for _, st := range strategies {
		doc, err := parseDocument(body)
		if err != nil {
			return nil, err
		}

		var candidates []Candidate
		switch st.KindOrDefault() {
		case scraper.StrategyReadability:
			candidates = applyReadability(doc, body, opts.BaseURL)
		default:
			candidates = applyCSS(doc, st, opts.MaxItems)
		}

		if short, ok := commit(candidates, st.AcceptAny, opts.minContentLength()); ok {
			return &Result{Candidates: candidates, Strategy: strategyName(st), ShortContent: short}, nil
		}
	}

	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	c, ok := harvestParagraphs(doc)
	if !ok {
		return &Result{Strategy: "fallback", Fallback: true}, ErrNoContent
	}
	return &Result{Candidates: []Candidate{c}, Strategy: "fallback", Fallback: true}, nil
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(strings.Join(alwaysStrip, ", ")).Remove()
	return doc, nil
}

func strategyName(st scraper.Strategy) string {
	if st.Name != "" {
		return st.Name
	}
	if st.ItemSelector != "" {
		return st.ItemSelector
	}
	return st.KindOrDefault()
}

// commit reports whether a strategy commits and how many of its candidates
// have content below minLength. Strategies accepting any candidate expect
// short content, so nothing is counted for them.
func commit(candidates []Candidate, acceptAny bool, minLength int) (short int, ok bool) {
	if acceptAny {
		return 0, len(candidates) > 0
	}
	for _, c := range candidates {
		if utf8.RuneCountInString(c.Content) > minLength {
			ok = true
		} else {
			short++
		}
	}
	return short, ok
}

// applyCSS evaluates a css strategy. Only candidates with a valid title are
// returned, at most the strategy's limit.
func applyCSS(doc *goquery.Document, st scraper.Strategy, maxItems int) []Candidate {
	if len(st.Strip) > 0 {
		doc.Find(strings.Join(st.Strip, ", ")).Remove()
	}

	limit := st.Limit()
	if maxItems > 0 {
		limit = maxItems
	}

	items := doc.Selection
	if st.ItemSelector != "" {
		items = doc.Find(st.ItemSelector)
	}

	var candidates []Candidate
	items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := collapse(nodeText(item.Find(st.TitleSelector).First()))
		if !validTitle(title) {
			return true
		}

		c := Candidate{
			Title: title,
			URL:   linkOf(item, st),
		}
		if st.ContentSelector != "" {
			c.Content = joinedText(item.Find(st.ContentSelector))
		}
		if st.DateSelector != "" {
			c.PublishedDate = attrOrText(item.Find(st.DateSelector).First(), st.DateAttr)
		}
		if st.ImageSelector != "" {
			c.ImageURL = imageOf(item.Find(st.ImageSelector).First(), st.ImageAttr)
		}

		candidates = append(candidates, c)
		return len(candidates) < limit
	})

	return candidates
}

// applyReadability extracts the main article of the page.
func applyReadability(doc *goquery.Document, body []byte, baseURL string) []Candidate {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil
	}
	content.Find("figure, aside, script, style").Remove()

	title := collapse(article.Title)
	if !validTitle(title) {
		return nil
	}

	return []Candidate{{
		Title:         title,
		Content:       collapse(content.Text()),
		ImageURL:      metaContent(doc, "og:image", "twitter:image"),
		PublishedDate: metaContent(doc, "article:published_time"),
	}}
}

func linkOf(item *goquery.Selection, st scraper.Strategy) string {
	var sel *goquery.Selection
	switch {
	case st.LinkSelector != "":
		sel = item.Find(st.LinkSelector).First()
		if sel.Length() == 0 && item.Is(st.LinkSelector) {
			sel = item
		}
	case goquery.NodeName(item) == "a":
		sel = item
	default:
		title := item.Find(st.TitleSelector).First()
		sel = title.Find("a[href]").First()
		if sel.Length() == 0 {
			sel = title.Closest("a[href]")
		}
	}

	href, _ := sel.Attr("href")
	return strings.TrimSpace(href)
}

func imageOf(sel *goquery.Selection, attr string) string {
	if attr != "" {
		v, _ := sel.Attr(attr)
		return strings.TrimSpace(v)
	}
	for _, name := range []string{"content", "src", "data-src", "data-lazy-src"} {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func attrOrText(sel *goquery.Selection, attr string) string {
	if attr != "" {
		v, _ := sel.Attr(attr)
		return strings.TrimSpace(v)
	}
	return collapse(nodeText(sel))
}

// nodeText reads meta elements through their content attribute.
func nodeText(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "meta" {
		v, _ := sel.Attr("content")
		return v
	}
	return sel.Text()
}

func joinedText(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := collapse(nodeText(s)); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)).First()
		if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
