package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the output format for item dates.
const DateLayout = "2006-01-02"

var (
	isoDate      = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	dottedYMD    = regexp.MustCompile(`(\d{4})\.\s*(\d{1,2})\.\s*(\d{1,2})`)
	dottedDMY    = regexp.MustCompile(`(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{4})`)
	slashedDMY   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dayMonthYear = regexp.MustCompile(`(\d{1,2})\.?\s+(\p{L}{3,})\.?,?\s+(\d{4})`)
	monthDayYear = regexp.MustCompile(`(\p{L}{3,})\.?\s+(\d{1,2}),?\s+(\d{4})`)
)

var feedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC3339,
}

// monthPrefixes maps the first three letters of English and Bosnian,
// Croatian and Serbian (latin) month names to months.
var monthPrefixes = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"maj": time.May,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"avg": time.August,
	"sep": time.September,
	"okt": time.October,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ParseDate converts text in any of the supported formats to YYYY-MM-DD.
// When nothing matches it returns now's date and false.
func ParseDate(text string, now time.Time) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return now.Format(DateLayout), false
	}

	for _, layout := range feedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format(DateLayout), true
		}
	}

	if m := isoDate.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := dottedYMD.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}
	if m := dottedDMY.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1]); ok {
			return d, true
		}
	}
	if m := slashedDMY.FindStringSubmatch(text); m != nil {
		if d, ok := buildDate(m[3], m[2], m[1]); ok {
			return d, true
		}
	}
	if m := dayMonthYear.FindStringSubmatch(text); m != nil {
		if month, ok := lookupMonth(m[2]); ok {
			if d, ok := buildDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
				return d, true
			}
		}
	}
	if m := monthDayYear.FindStringSubmatch(text); m != nil {
		if month, ok := lookupMonth(m[1]); ok {
			if d, ok := buildDate(m[3], strconv.Itoa(int(month)), m[2]); ok {
				return d, true
			}
		}
	}

	if t, err := dateparse.ParseAny(text); err == nil {
		return t.Format(DateLayout), true
	}

	return now.Format(DateLayout), false
}

func lookupMonth(word string) (time.Month, bool) {
	runes := []rune(strings.ToLower(word))
	if len(runes) < 3 {
		return 0, false
	}
	m, ok := monthPrefixes[string(runes[:3])]
	return m, ok
}

// buildDate validates the components, rejecting values time.Date would
// silently roll over (e.g. 31.02.).
func buildDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return "", false
	}
	return t.Format(DateLayout), true
}
