package newsfeed

import (
	"fmt"
	"regexp"
	"strconv"
)

// Record is one output file handed to the publisher. Everything except
// Published is fixed once written; Published belongs to the publisher.
type Record struct {
	Title                string  `json:"title"`
	ID                   string  `json:"id"`
	Content              string  `json:"content"`
	URL                  string  `json:"url"`
	ImageURL             string  `json:"image_url,omitempty"`
	ContentType          string  `json:"content_type,omitempty"`
	Date                 string  `json:"date"`
	ScheduledPublishTime *string `json:"scheduled_publish_time"`
	Published            string  `json:"published"`
	Source               string  `json:"source"`
	SourceName           string  `json:"source_name"`
	ContentHash          string  `json:"content_hash"`
	ScrapedAt            string  `json:"scraped_at"`
}

// IsPublished reports whether the publisher has claimed the record.
func (r *Record) IsPublished() bool {
	return r.Published != ""
}

var filenamePattern = regexp.MustCompile(`^([0-9a-f]+)-(\d{8})-(\d{3,})\.json$`)

// Filename returns the record filename for a source hash, a day in
// YYYYMMDD form and a sequence number.
func Filename(sourceHash, day string, seq int) string {
	return fmt.Sprintf("%s-%s-%03d.json", sourceHash, day, seq)
}

// ParseFilename splits a record filename into its parts.
func ParseFilename(name string) (sourceHash, day string, seq int, err error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", 0, fmt.Errorf("not a record filename: %q", name)
	}
	seq, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid sequence in %q: %w", name, err)
	}
	return m[1], m[2], seq, nil
}
